// Package audit provides the append-only event sink used throughout the
// core. The zero-value construction path (NewNoop) is the default so
// call sites never need to guard with "if audit enabled".
package audit

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrSourceRequired is returned by Log when an entry carries no source.
var ErrSourceRequired = errors.New("audit: entry source is required")

// Entry is a single audit record. Source is mandatory (invariant #2 of the
// core: every entry carries a non-empty source, timestamp, and action). ID
// is assigned by Store.Log when left empty, so callers never need to mint
// one themselves.
type Entry struct {
	ID        string
	Timestamp time.Time
	Source    string
	UserID    string
	Action    string
	Success   bool
	Metadata  map[string]any
	Error     string
}

// Filter selects entries returned by Query. A field left at its zero value
// (empty string, zero time, nil Success) matches everything.
type Filter struct {
	Source  string
	UserID  string
	Since   time.Time
	Success *bool
}

func (f Filter) matches(e Entry) bool {
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.Success != nil && e.Success != *f.Success {
		return false
	}
	return true
}

// Service is the append-only audit sink contract consumed by every other
// component. Implementations may fan out to pluggable sinks, but must
// preserve per-entry ordering within a source. Store.Log does no I/O of its
// own, but it calls its sinks synchronously, so a sink that does I/O (such
// as RedisStreamSink) makes Log wait for it.
type Service interface {
	Log(e Entry) error
	Query(f Filter) []Entry
	Clear()
}

// OverflowFunc is invoked, synchronously and without blocking, whenever a
// bounded store evicts the oldest entry to make room for a new one.
type OverflowFunc func(evicted Entry)

// Sink receives a copy of every logged entry in addition to the bounded
// in-memory store. Sink errors are swallowed (best-effort fan-out). Each
// sink is called in turn on the goroutine that called Log; Log returns only
// after every sink has returned.
type Sink interface {
	Log(e Entry) error
}

type noop struct{}

// NewNoop returns an audit Service whose methods all succeed and store
// nothing. This is the default construction used when auth.audit.enabled
// is false or absent.
func NewNoop() Service { return noop{} }

func (noop) Log(Entry) error     { return nil }
func (noop) Query(Filter) []Entry { return nil }
func (noop) Clear()               {}

const defaultMaxEntries = 10000

var (
	entriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Total number of audit entries logged, labeled by source and success.",
	}, []string{"source", "success"})
	overflowTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_overflow_total",
		Help: "Total number of audit entries evicted from the bounded in-memory store.",
	})
)

func init() {
	prometheus.MustRegister(entriesTotal, overflowTotal)
}

// Store is a bounded, FIFO in-memory audit sink with an optional overflow
// callback and optional fan-out sinks. It satisfies Service.
type Store struct {
	mu         sync.Mutex
	ring       *list.List
	maxEntries int
	onOverflow OverflowFunc
	sinks      []Sink
}

// NewStore builds an in-memory audit Store bounded at maxEntries (defaults
// to 10000 when maxEntries <= 0), with an optional overflow callback and
// optional fan-out sinks such as a Redis stream sink.
func NewStore(maxEntries int, onOverflow OverflowFunc, sinks ...Sink) *Store {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Store{
		ring:       list.New(),
		maxEntries: maxEntries,
		onOverflow: onOverflow,
		sinks:      sinks,
	}
}

// Log appends e to the bounded store, evicting the oldest entry if the
// store is at capacity, then fans e out to any configured sinks.
func (s *Store) Log(e Entry) error {
	if e.Source == "" {
		return ErrSourceRequired
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.ring.PushBack(e)
	var evicted *Entry
	if s.ring.Len() > s.maxEntries {
		front := s.ring.Front()
		ev := front.Value.(Entry)
		evicted = &ev
		s.ring.Remove(front)
	}
	s.mu.Unlock()

	entriesTotal.WithLabelValues(e.Source, successLabel(e.Success)).Inc()
	if evicted != nil {
		overflowTotal.Inc()
		if s.onOverflow != nil {
			s.onOverflow(*evicted)
		}
	}

	for _, sink := range s.sinks {
		_ = sink.Log(e)
	}
	return nil
}

// Query returns all entries matching f, oldest first.
func (s *Store) Query(f Filter) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for el := s.ring.Front(); el != nil; el = el.Next() {
		e := el.Value.(Entry)
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes every entry from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Init()
}

func successLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
