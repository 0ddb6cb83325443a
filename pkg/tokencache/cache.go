// Package tokencache implements C7: the encrypted, session-keyed cache of
// RFC 8693 delegation tokens. Every ciphertext is AEAD-sealed with the
// SHA-256 of the originating subject token as associated data, so
// decrypting a cached entry requires presenting the exact subject token
// that produced it. That binding is the cache's invalidation mechanism on
// JWT refresh: a new subject token resolves to a new session id and
// cannot reach entries sealed under the old one, whether or not the old
// session has been swept yet.
package tokencache

import (
	"container/list"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	sessionIDPrefixBytes = 16
	sessionKeyBytes      = 32
	nonceBytes           = 12

	// DefaultMaxEntriesPerSession bounds the per-session LRU.
	DefaultMaxEntriesPerSession = 10
	// DefaultMaxTotalEntries bounds the cache-wide LRU.
	DefaultMaxTotalEntries = 10000
	// DefaultSessionTimeout is the heartbeat window after which an idle
	// session record is swept.
	DefaultSessionTimeout = 30 * time.Minute
	// DefaultMaxTTL caps how long any single entry may live regardless of
	// the delegation token's own expiry.
	DefaultMaxTTL = 10 * time.Minute
)

// ErrSessionNotActivated is returned by Put when called for a session id
// that Activate has not (yet, or still) registered.
var ErrSessionNotActivated = errors.New("tokencache: put called before activate")

// Config controls cache sizing and TTLs. Zero values fall back to the
// package defaults.
type Config struct {
	MaxEntriesPerSession int
	MaxTotalEntries      int
	SessionTimeout       time.Duration
	MaxTTL               time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxEntriesPerSession <= 0 {
		c.MaxEntriesPerSession = DefaultMaxEntriesPerSession
	}
	if c.MaxTotalEntries <= 0 {
		c.MaxTotalEntries = DefaultMaxTotalEntries
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = DefaultMaxTTL
	}
	return c
}

// entry is one sealed delegation token, tracked simultaneously in its
// session's LRU list and the cache-wide LRU list so either an idle
// session or a global capacity breach can evict it in O(1).
type entry struct {
	sessionID  string
	audience   string
	ciphertext []byte
	nonce      [nonceBytes]byte
	storedAt   time.Time
	expiresAt  time.Time
	sessionEl  *list.Element
	globalEl   *list.Element
}

// sessionRecord is the per-session identity record: a random symmetric
// key and the entries sealed under it. It is created lazily on first
// cache access for a given subject token and destroyed on heartbeat
// timeout, explicit logout, or implicitly by the subject token changing
// (which resolves to a different session id entirely).
type sessionRecord struct {
	sessionKey    [sessionKeyBytes]byte
	lastHeartbeat time.Time
	entries       map[string]*entry
	lru           *list.List
}

func (r *sessionRecord) zeroKey() {
	for i := range r.sessionKey {
		r.sessionKey[i] = 0
	}
}

// Cache is the encrypted, session-keyed delegation token cache. The zero
// value is not usable; construct with New. Cache satisfies
// tokenexchange.Cache via the adapter in adapter.go.
type Cache struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*sessionRecord
	global   *list.List

	stats stats

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds an EncryptedTokenCache and starts its background cleanup
// sweep, ticking every SessionTimeout/4. Call Close to stop the sweep
// when the cache is no longer needed.
func New(cfg Config) *Cache {
	cfg = cfg.withDefaults()
	c := &Cache{
		cfg:      cfg,
		sessions: make(map[string]*sessionRecord),
		global:   list.New(),
		stopCh:   make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Activate derives the deterministic session id for subjectToken,
// creating a fresh per-session key on first use and refreshing the
// heartbeat on every call. The same token always resolves to the same
// id; any other token resolves to a different id and can never reach
// entries sealed under this one.
func (c *Cache) Activate(subjectToken string) string {
	sessionID := deriveSessionID(subjectToken)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.sessions[sessionID]
	if !ok {
		rec = &sessionRecord{
			lastHeartbeat: time.Now(),
			entries:       make(map[string]*entry),
			lru:           list.New(),
		}
		if _, err := rand.Read(rec.sessionKey[:]); err != nil {
			// A zero-value key would silently defeat the cache's only
			// security property (decryption requires the subject token);
			// failing to seed it from the CSPRNG is not recoverable.
			panic(fmt.Sprintf("tokencache: failed to generate session key: %v", err))
		}
		c.sessions[sessionID] = rec
		c.stats.activeSessions.Add(1)
		activeSessionsGauge.Inc()
	} else {
		rec.lastHeartbeat = time.Now()
	}
	return sessionID
}

func deriveSessionID(subjectToken string) string {
	sum := sha256.Sum256([]byte(subjectToken))
	return base64.RawURLEncoding.EncodeToString(sum[:sessionIDPrefixBytes])
}

// Put seals plaintext under sessionID/audience, with subjectToken's full
// SHA-256 bound in as AEAD associated data. The effective ttl is
// min(tokenExp, now+MaxTTL); if that has already elapsed, plaintext is
// silently not stored (not an error: the caller's exchange still
// succeeded, it just isn't worth caching).
func (c *Cache) Put(sessionID, audience, subjectToken, plaintext string, tokenExp time.Time) error {
	now := time.Now()
	ttl := tokenExp
	if maxTTL := now.Add(c.cfg.MaxTTL); ttl.IsZero() || ttl.After(maxTTL) {
		ttl = maxTTL
	}
	if !ttl.After(now) {
		return nil
	}

	var nonce [nonceBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("tokencache: generate nonce: %w", err)
	}
	aad := sha256.Sum256([]byte(subjectToken))

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.sessions[sessionID]
	if !ok {
		return ErrSessionNotActivated
	}
	rec.lastHeartbeat = now

	ciphertext, err := seal(rec.sessionKey[:], nonce[:], []byte(plaintext), aad[:])
	if err != nil {
		return fmt.Errorf("tokencache: seal: %w", err)
	}

	if existing, ok := rec.entries[audience]; ok {
		c.removeEntryLocked(rec, existing)
	}
	for len(rec.entries) >= c.cfg.MaxEntriesPerSession {
		if !c.evictSessionLRULocked(rec) {
			break
		}
	}
	for c.global.Len() >= c.cfg.MaxTotalEntries {
		if !c.evictGlobalLRULocked() {
			break
		}
	}

	e := &entry{
		sessionID:  sessionID,
		audience:   audience,
		ciphertext: ciphertext,
		nonce:      nonce,
		storedAt:   now,
		expiresAt:  ttl,
	}
	e.sessionEl = rec.lru.PushFront(e)
	e.globalEl = c.global.PushFront(e)
	rec.entries[audience] = e

	c.stats.entriesTotal.Add(1)
	entriesTotalGauge.Inc()
	approxMemoryBytesGauge.Add(float64(len(ciphertext) + len(audience) + len(sessionID)))
	return nil
}

// Get retrieves and unseals the entry stored for sessionID/audience.
// Absence, expiry, or AEAD failure (tampering, or subjectToken not
// matching the one the entry was sealed under) are all reported as a
// plain miss; decryption errors are never surfaced to the caller. A miss
// from AEAD failure increments DecryptionFailures so an impersonation
// attempt is observable without ever being distinguishable from an
// ordinary cache miss by the caller.
func (c *Cache) Get(sessionID, audience, subjectToken string) (string, bool) {
	c.mu.Lock()
	rec, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		c.stats.misses.Add(1)
		cacheMisses.Inc()
		return "", false
	}
	e, ok := rec.entries[audience]
	if !ok {
		c.mu.Unlock()
		c.stats.misses.Add(1)
		cacheMisses.Inc()
		return "", false
	}
	if !e.expiresAt.After(time.Now()) {
		c.removeEntryLocked(rec, e)
		c.mu.Unlock()
		c.stats.misses.Add(1)
		cacheMisses.Inc()
		return "", false
	}

	rec.lru.MoveToFront(e.sessionEl)
	c.global.MoveToFront(e.globalEl)
	ciphertext := e.ciphertext
	nonce := e.nonce
	key := rec.sessionKey
	c.mu.Unlock()

	aad := sha256.Sum256([]byte(subjectToken))
	plaintext, err := open(key[:], nonce[:], ciphertext, aad[:])
	if err != nil {
		c.stats.decryptionFailures.Add(1)
		c.stats.misses.Add(1)
		decryptionFailuresCounter.Inc()
		cacheMisses.Inc()
		return "", false
	}

	c.stats.hits.Add(1)
	cacheHits.Inc()
	return string(plaintext), true
}

// ClearSession destroys the session record for sessionID, overwriting its
// key before release, and drops every entry sealed under it. It is the
// logout path; a no-op if sessionID is unknown.
func (c *Cache) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.sessions[sessionID]; ok {
		c.destroySessionLocked(sessionID, rec)
	}
}

// Close stops the background cleanup sweep. It does not clear any
// sessions; call ClearSession first if that is required.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweepLoop() {
	interval := c.cfg.SessionTimeout / 4
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, rec := range c.sessions {
		if now.Sub(rec.lastHeartbeat) > c.cfg.SessionTimeout {
			c.destroySessionLocked(id, rec)
		}
	}
}

func (c *Cache) destroySessionLocked(id string, rec *sessionRecord) {
	for el := rec.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		c.global.Remove(e.globalEl)
		c.stats.entriesTotal.Add(-1)
		entriesTotalGauge.Dec()
		approxMemoryBytesGauge.Add(-float64(len(e.ciphertext) + len(e.audience) + len(id)))
	}
	delete(c.sessions, id)
	rec.zeroKey()
	c.stats.activeSessions.Add(-1)
	activeSessionsGauge.Dec()
}

// removeEntryLocked drops a single entry (expired-on-read, or overwritten
// by a fresh Put for the same audience) without tearing down the session.
func (c *Cache) removeEntryLocked(rec *sessionRecord, e *entry) {
	rec.lru.Remove(e.sessionEl)
	c.global.Remove(e.globalEl)
	delete(rec.entries, e.audience)
	c.stats.entriesTotal.Add(-1)
	entriesTotalGauge.Dec()
	approxMemoryBytesGauge.Add(-float64(len(e.ciphertext) + len(e.audience) + len(e.sessionID)))
}

func (c *Cache) evictSessionLRULocked(rec *sessionRecord) bool {
	back := rec.lru.Back()
	if back == nil {
		return false
	}
	c.removeEntryLocked(rec, back.Value.(*entry))
	c.stats.evictions.Add(1)
	evictionsCounter.Inc()
	return true
}

func (c *Cache) evictGlobalLRULocked() bool {
	back := c.global.Back()
	if back == nil {
		return false
	}
	e := back.Value.(*entry)
	rec, ok := c.sessions[e.sessionID]
	if !ok {
		c.global.Remove(back)
		return true
	}
	c.removeEntryLocked(rec, e)
	c.stats.evictions.Add(1)
	evictionsCounter.Inc()
	return true
}

func seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, aad)
}
