package tokencache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// stats mirrors the prometheus counters locally so a single Cache
// instance's behavior can be asserted in tests without reading back
// through the global default registry, which accumulates across every
// Cache built in the process.
type stats struct {
	hits               atomic.Int64
	misses             atomic.Int64
	decryptionFailures atomic.Int64
	evictions          atomic.Int64
	activeSessions     atomic.Int64
	entriesTotal       atomic.Int64
}

// Stats is a point-in-time snapshot of this Cache's counters.
type Stats struct {
	Hits               int64
	Misses             int64
	DecryptionFailures int64
	Evictions          int64
	ActiveSessions     int64
	EntriesTotal       int64
}

// Stats returns a snapshot of c's counters. Never includes token
// material; these are counts only.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:               c.stats.hits.Load(),
		Misses:             c.stats.misses.Load(),
		DecryptionFailures: c.stats.decryptionFailures.Load(),
		Evictions:          c.stats.evictions.Load(),
		ActiveSessions:     c.stats.activeSessions.Load(),
		EntriesTotal:       c.stats.entriesTotal.Load(),
	}
}

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokencache_hits_total",
		Help: "Total number of delegation-token cache hits.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokencache_misses_total",
		Help: "Total number of delegation-token cache misses.",
	})
	decryptionFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokencache_decryption_failures_total",
		Help: "Total number of AEAD decryption failures (tampering or subject-token mismatch).",
	})
	evictionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokencache_evictions_total",
		Help: "Total number of entries evicted by LRU pressure (per-session or cache-wide).",
	})
	activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokencache_active_sessions",
		Help: "Current number of active cache session records.",
	})
	entriesTotalGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokencache_entries_total",
		Help: "Current number of cached delegation token entries.",
	})
	approxMemoryBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tokencache_approx_memory_bytes",
		Help: "Approximate memory held by cached ciphertext, audience and session-id bytes.",
	})
)

func init() {
	prometheus.MustRegister(
		cacheHits, cacheMisses, decryptionFailuresCounter, evictionsCounter,
		activeSessionsGauge, entriesTotalGauge, approxMemoryBytesGauge,
	)
}
