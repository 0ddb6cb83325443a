package session

import (
	"context"
	"time"
)

// Role constants used for Session.PrimaryRole. UnassignedRole marks a
// principal that authenticated but could not be mapped to any configured
// role.
const (
	RoleAdmin       = "ROLE_ADMIN"
	RoleUser        = "ROLE_USER"
	RoleGuest       = "ROLE_GUEST"
	UnassignedRole  = "UNASSIGNED_ROLE"
	CurrentVersion  = 1
	legacyVersion   = 0
)

// RoleMapResult is the output of a RoleMapper.Determine call. It is a pure
// data structure; RoleMapper.Determine must never raise, returning a
// MappingFailed result instead.
type RoleMapResult struct {
	PrimaryRole   string
	CustomRoles   map[string]struct{}
	Permissions   map[string]struct{}
	Scopes        map[string]struct{}
	MappingFailed bool
	FailureReason string
}

// Session is the normalized, immutable view of an authenticated principal.
// It is created only by SessionManager.Create and must never be mutated
// after construction.
type Session struct {
	Version         int
	UserID          string
	Issuer          string
	LegacyUsername  string
	PrimaryRole     string
	CustomRoles     map[string]struct{}
	Permissions     map[string]struct{}
	Scopes          map[string]struct{}
	Claims          Claims
	Rejected        bool
	RejectionReason string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// HasRole reports whether s carries the exact primary or custom role r.
func (s *Session) HasRole(r string) bool {
	if s == nil {
		return false
	}
	if s.PrimaryRole == r {
		return true
	}
	_, ok := s.CustomRoles[r]
	return ok
}

// HasScope reports whether s carries scope sc.
func (s *Session) HasScope(sc string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Scopes[sc]
	return ok
}

// AuthResult is returned by AuthenticationService.Authenticate.
type AuthResult struct {
	Session         *Session
	Rejected        bool
	RejectionReason string
}

type sessionContextKey struct{}

// WithSession returns a copy of ctx carrying s. Rejected sessions must
// never be attached by middleware; callers enforce that at the call site.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext retrieves the Session attached by WithSession, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
