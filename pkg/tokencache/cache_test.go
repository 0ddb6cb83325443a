package tokencache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(Config{SessionTimeout: time.Hour})
	t.Cleanup(c.Close)
	return c
}

func TestActivateIsDeterministicInSubjectToken(t *testing.T) {
	c := newTestCache(t)
	id1 := c.Activate("token-a")
	id2 := c.Activate("token-a")
	assert.Equal(t, id1, id2)

	id3 := c.Activate("token-b")
	assert.NotEqual(t, id1, id3)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	sid := c.Activate("subject-token")

	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "delegation-token", time.Now().Add(time.Minute)))

	got, ok := c.Get(sid, "aud-1", "subject-token")
	require.True(t, ok)
	assert.Equal(t, "delegation-token", got)
}

func TestGetMissesWithWrongSubjectToken(t *testing.T) {
	c := newTestCache(t)
	sid := c.Activate("subject-token")
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "delegation-token", time.Now().Add(time.Minute)))

	_, ok := c.Get(sid, "aud-1", "a-different-token")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().DecryptionFailures)
}

func TestPutWithoutActivateFails(t *testing.T) {
	c := newTestCache(t)
	err := c.Put("never-activated", "aud", "tok", "plaintext", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrSessionNotActivated)
}

func TestPutDoesNotStoreAlreadyExpiredEntry(t *testing.T) {
	c := newTestCache(t)
	sid := c.Activate("subject-token")
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "delegation-token", time.Now().Add(-time.Second)))

	_, ok := c.Get(sid, "aud-1", "subject-token")
	assert.False(t, ok)
}

func TestGetMissesAfterExpiry(t *testing.T) {
	c := newTestCache(t)
	sid := c.Activate("subject-token")
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok", time.Now().Add(20*time.Millisecond)))

	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(sid, "aud-1", "subject-token")
	assert.False(t, ok)
}

func TestMaxTTLCapsDelegationTokenExpiry(t *testing.T) {
	c := New(Config{SessionTimeout: time.Hour, MaxTTL: 10 * time.Millisecond})
	t.Cleanup(c.Close)
	sid := c.Activate("subject-token")

	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok", time.Now().Add(time.Hour)))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(sid, "aud-1", "subject-token")
	assert.False(t, ok, "entry should have been capped to MaxTTL, not the delegation token's own (much longer) expiry")
}

func TestPerSessionOverflowEvictsExactlyOneLRUEntry(t *testing.T) {
	c := New(Config{SessionTimeout: time.Hour, MaxEntriesPerSession: 2})
	t.Cleanup(c.Close)
	sid := c.Activate("subject-token")

	future := time.Now().Add(time.Hour)
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok-1", future))
	require.NoError(t, c.Put(sid, "aud-2", "subject-token", "tok-2", future))
	require.NoError(t, c.Put(sid, "aud-3", "subject-token", "tok-3", future))

	_, ok1 := c.Get(sid, "aud-1", "subject-token")
	_, ok2 := c.Get(sid, "aud-2", "subject-token")
	_, ok3 := c.Get(sid, "aud-3", "subject-token")

	assert.False(t, ok1, "oldest entry (aud-1) should have been evicted")
	assert.True(t, ok2)
	assert.True(t, ok3)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOverwritingSameAudienceDoesNotCountTwiceAgainstCap(t *testing.T) {
	c := New(Config{SessionTimeout: time.Hour, MaxEntriesPerSession: 2})
	t.Cleanup(c.Close)
	sid := c.Activate("subject-token")
	future := time.Now().Add(time.Hour)

	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok-1", future))
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok-1-updated", future))
	require.NoError(t, c.Put(sid, "aud-2", "subject-token", "tok-2", future))

	got1, ok1 := c.Get(sid, "aud-1", "subject-token")
	_, ok2 := c.Get(sid, "aud-2", "subject-token")
	assert.True(t, ok1)
	assert.Equal(t, "tok-1-updated", got1)
	assert.True(t, ok2)
}

func TestSubjectTokenRefreshInvalidatesPriorEntries(t *testing.T) {
	c := newTestCache(t)
	sidOld := c.Activate("token-v1")
	require.NoError(t, c.Put(sidOld, "aud", "token-v1", "tok", time.Now().Add(time.Hour)))

	sidNew := c.Activate("token-v2")
	require.NotEqual(t, sidOld, sidNew)

	_, ok := c.Get(sidNew, "aud", "token-v2")
	assert.False(t, ok, "a fresh session id must not see entries stored under the old one")

	got, ok := c.Get(sidOld, "aud", "token-v1")
	assert.True(t, ok)
	assert.Equal(t, "tok", got)
}

func TestClearSessionRemovesAllItsEntries(t *testing.T) {
	c := newTestCache(t)
	sid := c.Activate("subject-token")
	require.NoError(t, c.Put(sid, "aud-1", "subject-token", "tok", time.Now().Add(time.Hour)))

	c.ClearSession(sid)

	_, ok := c.Get(sid, "aud-1", "subject-token")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().ActiveSessions)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	c := New(Config{SessionTimeout: 20 * time.Millisecond})
	t.Cleanup(c.Close)
	sid := c.Activate("subject-token")
	require.NoError(t, c.Put(sid, "aud", "subject-token", "tok", time.Now().Add(time.Hour)))

	assert.Eventually(t, func() bool {
		_, ok := c.Get(sid, "aud", "subject-token")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
