package jwtvalidator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/stacklok/toolhive-authcore/pkg/logger"
)

const (
	kidMissCooldown   = time.Minute
	registrationTimeout = 5 * time.Second
)

// jwksResolver wraps a jwk.Cache for a single JWKS URI, adding a
// single-flight guard so concurrent misses coalesce into one fetch, and a
// cooldown on unknown-kid force-refreshes so a hostile client cannot drive
// unbounded JWKS traffic by sending tokens with bogus key ids.
type jwksResolver struct {
	uri    string
	cache  *jwk.Cache
	group  singleflight.Group

	mu             sync.Mutex
	registered     bool
	registrationErr error
	lastForceRefresh time.Time
}

func newJWKSResolver(ctx context.Context, uri string, httpClient *http.Client) (*jwksResolver, error) {
	client := httprc.NewClient(httprc.WithHTTPClient(httpClient))
	cache, err := jwk.NewCache(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}
	return &jwksResolver{uri: uri, cache: cache}, nil
}

func (r *jwksResolver) ensureRegistered(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered {
		return r.registrationErr
	}

	regCtx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	if err := r.cache.Register(regCtx, r.uri); err != nil {
		r.registrationErr = fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	} else {
		r.registrationErr = nil
	}
	r.registered = true
	return r.registrationErr
}

// lookupKey resolves kid against the cached key set, force-refreshing at
// most once per kidMissCooldown when the kid is not found.
func (r *jwksResolver) lookupKey(ctx context.Context, kid string) (any, error) {
	if err := r.ensureRegistered(ctx); err != nil {
		return nil, err
	}

	key, err := r.lookupOnce(ctx, kid)
	if err == nil {
		return key, nil
	}
	if err != errKeyNotFound {
		return nil, err
	}

	if !r.allowForceRefresh() {
		return nil, ErrUnknownKey
	}

	_, sfErr, _ := r.group.Do("refresh", func() (any, error) {
		return nil, r.forceRefresh(ctx)
	})
	if sfErr != nil {
		return nil, sfErr
	}

	return r.lookupOnce(ctx, kid)
}

var errKeyNotFound = fmt.Errorf("jwtvalidator: key not found in cached set")

func (r *jwksResolver) lookupOnce(ctx context.Context, kid string) (any, error) {
	keySet, err := r.cache.Lookup(ctx, r.uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, errKeyNotFound
	}

	if err := validateKeyForSigVerification(key); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownKey, kid, err)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to export key %s: %v", ErrJWKSUnavailable, kid, err)
	}
	return raw, nil
}

// validateKeyForSigVerification rejects a resolved JWK that is not eligible
// for verifying a signature: a "use" other than "sig" (the field is
// optional, so an absent use is accepted), or a "kty" other than RSA or EC.
// A kid collision on a key published for a different purpose (e.g. "enc" or
// a symmetric "oct" key) must never reach the signature parser.
func validateKeyForSigVerification(key jwk.Key) error {
	var use string
	if err := key.Get(jwk.KeyUsageKey, &use); err == nil && use != "" && use != "sig" {
		return fmt.Errorf("key use %q is not sig", use)
	}

	var kty jwa.KeyType
	if err := key.Get(jwk.KeyTypeKey, &kty); err != nil {
		return fmt.Errorf("missing key type: %w", err)
	}
	switch kty.String() {
	case "RSA", "EC":
		return nil
	default:
		return fmt.Errorf("key type %q is not RSA or EC", kty.String())
	}
}

func (r *jwksResolver) allowForceRefresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.lastForceRefresh) < kidMissCooldown {
		return false
	}
	r.lastForceRefresh = time.Now()
	return true
}

func (r *jwksResolver) forceRefresh(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	if _, err := r.cache.Refresh(refreshCtx, r.uri); err != nil {
		logger.Warnw("jwks force refresh failed", "uri", r.uri, "error", err)
		return fmt.Errorf("%w: %v", ErrJWKSUnavailable, err)
	}
	return nil
}
