package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklok/toolhive-authcore/pkg/logger"
)

const redisSinkTimeout = 3 * time.Second

// RedisStreamSink fans audit entries out to a Redis stream via XADD. It is
// best-effort: a failed XADD is logged and swallowed rather than returned,
// so a sink outage never fails a request. The XADD runs synchronously and
// waits up to redisSinkTimeout (3s), so during an outage each Store.Log call
// that reaches this sink waits that long.
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

// NewRedisStreamSink builds a sink that appends to the given stream key.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream}
}

// Log serializes e as JSON and appends it to the configured stream.
func (r *RedisStreamSink) Log(e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		logger.Warnw("audit redis sink: marshal failed", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisSinkTimeout)
	defer cancel()

	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{"entry": payload},
	}).Err(); err != nil {
		logger.Warnw("audit redis sink: xadd failed", "stream", r.stream, "error", err)
	}
	return nil
}
