package jwtvalidator

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// Dispatcher selects the Validator for a token's issuer before performing
// any network I/O, so an unknown issuer fails fast with no JWKS fetch.
type Dispatcher struct {
	byIssuer map[string]*Validator
}

// NewDispatcher builds one Validator per TrustedIDP and indexes them by
// issuer. httpClient is shared across all validators' JWKS fetches.
func NewDispatcher(ctx context.Context, idps []TrustedIDP, httpClient *http.Client) (*Dispatcher, error) {
	byIssuer := make(map[string]*Validator, len(idps))
	for _, idp := range idps {
		v, err := NewValidator(ctx, idp, httpClient)
		if err != nil {
			return nil, err
		}
		byIssuer[idp.Issuer] = v
	}
	return &Dispatcher{byIssuer: byIssuer}, nil
}

// Validate extracts the issuer from the token without verifying its
// signature, selects the matching Validator, and delegates verification
// to it. Unknown issuers return ErrUnknownIssuer without any JWKS fetch.
func (d *Dispatcher) Validate(ctx context.Context, compact string) (session.Claims, error) {
	iss, err := unverifiedIssuer(compact)
	if err != nil {
		return session.Claims{}, err
	}

	v, ok := d.byIssuer[iss]
	if !ok {
		return session.Claims{}, ErrUnknownIssuer
	}
	return v.Validate(ctx, compact)
}

func unverifiedIssuer(compact string) (string, error) {
	if strings.Count(compact, ".") != 2 {
		return "", ErrInvalidToken
	}

	var claims jwt.MapClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(compact, &claims); err != nil {
		return "", ErrInvalidToken
	}

	iss, _ := claims["iss"].(string)
	if iss == "" {
		return "", ErrUnknownIssuer
	}
	return iss, nil
}
