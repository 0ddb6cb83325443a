package authz

import "github.com/stacklok/toolhive-authcore/pkg/session"

// RequireRole returns an *Error (AUTHORIZATION_FAILED) unless sess
// carries role r. Intended for use inside a handler, not for computing
// tool visibility ahead of time.
func RequireRole(sess *session.Session, r string) error {
	if sess.HasRole(r) {
		return nil
	}
	return missingRole(r)
}

// RequireAnyRole returns an *Error unless sess carries at least one of rs.
func RequireAnyRole(sess *session.Session, rs []string) error {
	if HasAnyRole(sess, rs) {
		return nil
	}
	return missingAnyRole(rs)
}

// RequireScope returns an *Error unless sess carries scope s.
func RequireScope(sess *session.Session, s string) error {
	if sess.HasScope(s) {
		return nil
	}
	return missingScope(s)
}

// RequireAnyScope returns an *Error unless sess carries at least one of ss.
func RequireAnyScope(sess *session.Session, ss []string) error {
	if HasAnyScope(sess, ss) {
		return nil
	}
	return missingAnyScope(ss)
}
