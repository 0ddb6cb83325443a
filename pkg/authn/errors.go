// Package authn composes JWT validation, role mapping, and session
// creation into C5 AuthenticationService, and exposes C10, the thin HTTP
// middleware that sits in front of a transport's tool dispatch.
package authn

import "errors"

// ErrAuthHeaderMissing is returned when the inbound request carries no
// Authorization header at all.
var ErrAuthHeaderMissing = errors.New("authn: authorization header required")

// ErrInvalidAuthHeaderFormat is returned when the Authorization header is
// present but does not use the "Bearer" scheme (matched case-insensitively,
// RFC 6750).
var ErrInvalidAuthHeaderFormat = errors.New("authn: invalid authorization header, expected 'Bearer <token>'")

// ErrEmptyBearerToken is returned when the Bearer scheme is present but
// carries no token.
var ErrEmptyBearerToken = errors.New("authn: empty bearer token")
