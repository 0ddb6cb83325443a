// Package jwtvalidator implements C2: per-IDP JWT validation with JWKS
// rotation, algorithm allow-listing, and the standard registered-claim
// checks (exp/nbf/iat/aud/iss).
package jwtvalidator

import "errors"

// Error kinds surfaced by Validate, matching the authentication error
// group of the core's error handling design.
var (
	ErrInvalidToken        = errors.New("jwtvalidator: invalid token")
	ErrUnknownIssuer       = errors.New("jwtvalidator: unknown issuer")
	ErrInvalidSignature    = errors.New("jwtvalidator: invalid signature")
	ErrExpired             = errors.New("jwtvalidator: token expired")
	ErrNotYetValid         = errors.New("jwtvalidator: token not yet valid")
	ErrInvalidAudience     = errors.New("jwtvalidator: invalid audience")
	ErrDisallowedAlgorithm = errors.New("jwtvalidator: disallowed algorithm")
	ErrUnknownKey          = errors.New("jwtvalidator: unknown key id")
	ErrJWKSUnavailable     = errors.New("jwtvalidator: jwks unavailable")
)
