package tokencache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

func TestExchangeCacheRoundTrip(t *testing.T) {
	cache := New(Config{SessionTimeout: time.Hour})
	t.Cleanup(cache.Close)
	adapter := NewExchangeCache(cache)

	subjectToken := "subject-jwt"
	sid := adapter.Activate(subjectToken)

	want := tokenexchange.ExchangeResult{
		AccessToken:     "delegated-token",
		TokenType:       "Bearer",
		IssuedTokenType: "urn:ietf:params:oauth:token-type:access_token",
		ExpiresAt:       time.Now().Add(time.Minute).Truncate(time.Second),
	}

	require.NoError(t, adapter.Put(context.Background(), sid, "downstream-api", subjectToken, want))

	got, ok := adapter.Get(context.Background(), sid, "downstream-api", subjectToken)
	require.True(t, ok)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	assert.Equal(t, want.IssuedTokenType, got.IssuedTokenType)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestExchangeCacheMissesForWrongSubjectToken(t *testing.T) {
	cache := New(Config{SessionTimeout: time.Hour})
	t.Cleanup(cache.Close)
	adapter := NewExchangeCache(cache)

	sid := adapter.Activate("subject-jwt")
	require.NoError(t, adapter.Put(context.Background(), sid, "aud", "subject-jwt", tokenexchange.ExchangeResult{
		AccessToken: "tok", TokenType: "Bearer", IssuedTokenType: "urn:x", ExpiresAt: time.Now().Add(time.Minute),
	}))

	_, ok := adapter.Get(context.Background(), sid, "aud", "forged-jwt")
	assert.False(t, ok)
}
