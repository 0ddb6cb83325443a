package core

import (
	"time"

	"github.com/redis/go-redis/v9"
)

func redisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
