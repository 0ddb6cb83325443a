package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-authcore/pkg/session"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// wireResult is the JSON shape sealed into a cache entry. DecodedClaims is
// carried as the raw claim map: session.Claims embeds jwt.MapClaims, which
// round-trips through JSON as a plain map, so no custom (un)marshaling is
// needed beyond re-wrapping it with session.NewClaims on the way out.
type wireResult struct {
	AccessToken     string         `json:"access_token"`
	TokenType       string         `json:"token_type"`
	IssuedTokenType string         `json:"issued_token_type"`
	DecodedClaims   map[string]any `json:"decoded_claims"`
	ExpiresAt       int64          `json:"expires_at"`
}

// ExchangeCache adapts a Cache to tokenexchange.Cache, so a *Cache can be
// handed directly to tokenexchange.New. Kept as a thin wrapper rather than
// implementing the interface on *Cache itself, since *Cache's own Get/Put
// operate on plain strings and have no notion of ExchangeResult.
type ExchangeCache struct {
	cache *Cache
}

// NewExchangeCache wraps cache for use as a tokenexchange.Cache.
func NewExchangeCache(cache *Cache) *ExchangeCache {
	return &ExchangeCache{cache: cache}
}

var _ tokenexchange.Cache = (*ExchangeCache)(nil)

// Activate delegates to the underlying Cache.
func (a *ExchangeCache) Activate(subjectToken string) string {
	return a.cache.Activate(subjectToken)
}

// Get unseals and JSON-decodes the cached ExchangeResult, if any.
func (a *ExchangeCache) Get(_ context.Context, sessionID, audience, subjectToken string) (tokenexchange.ExchangeResult, bool) {
	plaintext, ok := a.cache.Get(sessionID, audience, subjectToken)
	if !ok {
		return tokenexchange.ExchangeResult{}, false
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(plaintext), &wire); err != nil {
		// A corrupt cached payload is treated the same as a miss: the
		// caller falls through to a fresh IDP exchange.
		return tokenexchange.ExchangeResult{}, false
	}

	return tokenexchange.ExchangeResult{
		AccessToken:     wire.AccessToken,
		TokenType:       wire.TokenType,
		IssuedTokenType: wire.IssuedTokenType,
		DecodedClaims:   decodedClaimsOf(wire.DecodedClaims),
		ExpiresAt:       unixOrZero(wire.ExpiresAt),
	}, true
}

// Put JSON-encodes result and seals it under sessionID/audience, bound to
// subjectToken.
func (a *ExchangeCache) Put(_ context.Context, sessionID, audience, subjectToken string, result tokenexchange.ExchangeResult) error {
	wire := wireResult{
		AccessToken:     result.AccessToken,
		TokenType:       result.TokenType,
		IssuedTokenType: result.IssuedTokenType,
		DecodedClaims:   map[string]any(result.DecodedClaims.MapClaims),
		ExpiresAt:       result.ExpiresAt.Unix(),
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("tokencache: marshal exchange result: %w", err)
	}
	return a.cache.Put(sessionID, audience, subjectToken, string(payload), result.ExpiresAt)
}

func decodedClaimsOf(m map[string]any) session.Claims {
	if m == nil {
		m = map[string]any{}
	}
	return session.NewClaims(jwt.MapClaims(m))
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
