package authz

import (
	"errors"
	"fmt"
)

// ErrAuthorizationFailed is the uniform AUTHORIZATION_FAILED sentinel
// every hard check wraps. MissingRole and MissingScope, when non-empty,
// name exactly what the session lacked.
var ErrAuthorizationFailed = errors.New("authz: authorization failed")

// Error carries AUTHORIZATION_FAILED plus the missing-role or
// missing-scope metadata a transport can surface without re-deriving it.
type Error struct {
	MissingRole  string
	MissingScope string
	err          error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func missingRole(role string) *Error {
	return &Error{
		MissingRole: role,
		err:         fmt.Errorf("%w: missing role %q", ErrAuthorizationFailed, role),
	}
}

func missingAnyRole(roles []string) *Error {
	return &Error{
		MissingRole: fmt.Sprintf("any of %v", roles),
		err:         fmt.Errorf("%w: missing any of roles %v", ErrAuthorizationFailed, roles),
	}
}

func missingScope(scope string) *Error {
	return &Error{
		MissingScope: scope,
		err:         fmt.Errorf("%w: missing scope %q", ErrAuthorizationFailed, scope),
	}
}

func missingAnyScope(scopes []string) *Error {
	return &Error{
		MissingScope: fmt.Sprintf("any of %v", scopes),
		err:         fmt.Errorf("%w: missing any of scopes %v", ErrAuthorizationFailed, scopes),
	}
}
