// Package authz implements C11: soft boolean checks used to compute
// per-request tool visibility, and hard checks that raise a uniform
// authorization failure from inside a handler.
package authz

import (
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// IsAuthenticated reports whether sess represents a successfully
// authenticated, non-rejected principal.
func IsAuthenticated(sess *session.Session) bool {
	return sess != nil && !sess.Rejected
}

// HasRole reports whether sess carries role r, either as its primary role
// or as a custom role.
func HasRole(sess *session.Session, r string) bool {
	return sess.HasRole(r)
}

// HasAnyRole reports whether sess carries at least one of rs.
func HasAnyRole(sess *session.Session, rs []string) bool {
	for _, r := range rs {
		if sess.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether sess carries every role in rs.
func HasAllRoles(sess *session.Session, rs []string) bool {
	for _, r := range rs {
		if !sess.HasRole(r) {
			return false
		}
	}
	return true
}

// HasScope reports whether sess carries scope s.
func HasScope(sess *session.Session, s string) bool {
	return sess.HasScope(s)
}

// HasAnyScope reports whether sess carries at least one of ss.
func HasAnyScope(sess *session.Session, ss []string) bool {
	for _, s := range ss {
		if sess.HasScope(s) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether sess carries every scope in ss.
func HasAllScopes(sess *session.Session, ss []string) bool {
	for _, s := range ss {
		if !sess.HasScope(s) {
			return false
		}
	}
	return true
}
