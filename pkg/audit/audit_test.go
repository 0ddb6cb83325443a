package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopServiceNeverFails(t *testing.T) {
	svc := NewNoop()
	require.NoError(t, svc.Log(Entry{}))
	assert.Empty(t, svc.Query(Filter{}))
	svc.Clear()
}

func TestStoreRejectsEntryWithoutSource(t *testing.T) {
	s := NewStore(10, nil)
	err := s.Log(Entry{Action: "authenticate_success"})
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestStoreEvictsOldestOnOverflow(t *testing.T) {
	var evicted []Entry
	s := NewStore(2, func(e Entry) { evicted = append(evicted, e) })

	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "one"}))
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "two"}))
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "three"}))

	require.Len(t, evicted, 1)
	assert.Equal(t, "one", evicted[0].Action)

	remaining := s.Query(Filter{})
	require.Len(t, remaining, 2)
	assert.Equal(t, "two", remaining[0].Action)
	assert.Equal(t, "three", remaining[1].Action)
}

func TestStoreQueryFiltersBySourceAndSuccess(t *testing.T) {
	s := NewStore(10, nil)
	ok := true
	failed := false
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "authenticate_success", Success: true}))
	require.NoError(t, s.Log(Entry{Source: "delegation:registry", Action: "delegate", Success: false}))

	authOnly := s.Query(Filter{Source: "auth:service"})
	require.Len(t, authOnly, 1)

	successOnly := s.Query(Filter{Success: &ok})
	require.Len(t, successOnly, 1)
	assert.Equal(t, "authenticate_success", successOnly[0].Action)

	failedOnly := s.Query(Filter{Success: &failed})
	require.Len(t, failedOnly, 1)
	assert.Equal(t, "delegate", failedOnly[0].Action)
}

func TestStoreAssignsIDWhenEmpty(t *testing.T) {
	s := NewStore(10, nil)
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "x"}))
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "y", ID: "caller-supplied"}))

	entries := s.Query(Filter{})
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "caller-supplied", entries[1].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestStoreFillsInMissingTimestamp(t *testing.T) {
	s := NewStore(10, nil)
	before := time.Now()
	require.NoError(t, s.Log(Entry{Source: "auth:service", Action: "x"}))
	entries := s.Query(Filter{})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.Before(before))
}
