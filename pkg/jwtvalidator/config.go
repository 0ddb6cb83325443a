package jwtvalidator

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultAllowedAlgorithms is used when a TrustedIDP does not specify its
// own allow-list. HMAC and "none" are never permitted regardless of
// configuration.
var DefaultAllowedAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384",
}

var disallowedAlgorithms = map[string]struct{}{
	"HS256": {}, "HS384": {}, "HS512": {}, "none": {},
}

// TrustedIDP is the immutable config record for one acceptable issuer.
// Built once by the orchestrator and never mutated afterward.
type TrustedIDP struct {
	Name              string
	Issuer            string
	JWKSURI           string
	Audience          []string
	AllowedAlgorithms []string
	ClockSkew         time.Duration
	MaxTokenAge       time.Duration // zero means unset
}

// Validate checks the static invariants of a TrustedIDP record: HTTPS
// JWKS URI, non-empty issuer/audience, and an algorithm allow-list that
// contains no HMAC or "none" entries.
func (t TrustedIDP) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("trusted idp: name is required")
	}
	if t.Issuer == "" {
		return fmt.Errorf("trusted idp %q: issuer is required", t.Name)
	}
	if len(t.Audience) == 0 {
		return fmt.Errorf("trusted idp %q: audience is required", t.Name)
	}

	u, err := url.Parse(t.JWKSURI)
	if err != nil || u.Scheme != "https" {
		return fmt.Errorf("trusted idp %q: jwks_uri must be an HTTPS URL, got %q", t.Name, t.JWKSURI)
	}

	algos := t.AllowedAlgorithms
	if len(algos) == 0 {
		algos = DefaultAllowedAlgorithms
	}
	for _, a := range algos {
		if _, bad := disallowedAlgorithms[a]; bad {
			return fmt.Errorf("trusted idp %q: algorithm %q is never permitted", t.Name, a)
		}
	}
	return nil
}

func (t TrustedIDP) allowedAlgorithms() []string {
	if len(t.AllowedAlgorithms) == 0 {
		return DefaultAllowedAlgorithms
	}
	return t.AllowedAlgorithms
}

func (t TrustedIDP) clockSkew() time.Duration {
	if t.ClockSkew <= 0 {
		return 60 * time.Second
	}
	return t.ClockSkew
}
