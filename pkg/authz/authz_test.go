package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/toolhive-authcore/pkg/authz"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

func adminSession() *session.Session {
	return &session.Session{
		PrimaryRole: session.RoleAdmin,
		CustomRoles: map[string]struct{}{"billing": {}},
		Scopes:      map[string]struct{}{"read:widgets": {}},
	}
}

func TestIsAuthenticated(t *testing.T) {
	assert.False(t, authz.IsAuthenticated(nil))
	assert.False(t, authz.IsAuthenticated(&session.Session{Rejected: true}))
	assert.True(t, authz.IsAuthenticated(&session.Session{Rejected: false}))
}

func TestSoftRoleChecks(t *testing.T) {
	sess := adminSession()
	assert.True(t, authz.HasRole(sess, session.RoleAdmin))
	assert.True(t, authz.HasRole(sess, "billing"))
	assert.False(t, authz.HasRole(sess, session.RoleGuest))

	assert.True(t, authz.HasAnyRole(sess, []string{session.RoleGuest, "billing"}))
	assert.False(t, authz.HasAnyRole(sess, []string{session.RoleGuest, session.RoleUser}))

	assert.True(t, authz.HasAllRoles(sess, []string{session.RoleAdmin, "billing"}))
	assert.False(t, authz.HasAllRoles(sess, []string{session.RoleAdmin, session.RoleUser}))
}

func TestSoftScopeChecks(t *testing.T) {
	sess := adminSession()
	assert.True(t, authz.HasScope(sess, "read:widgets"))
	assert.False(t, authz.HasScope(sess, "write:widgets"))
	assert.True(t, authz.HasAnyScope(sess, []string{"write:widgets", "read:widgets"}))
	assert.False(t, authz.HasAllScopes(sess, []string{"read:widgets", "write:widgets"}))
}

func TestHardChecksRaiseUniformError(t *testing.T) {
	sess := &session.Session{PrimaryRole: session.RoleGuest}

	err := authz.RequireRole(sess, session.RoleAdmin)
	assert.ErrorIs(t, err, authz.ErrAuthorizationFailed)

	var authzErr *authz.Error
	assert.ErrorAs(t, err, &authzErr)
	assert.Equal(t, session.RoleAdmin, authzErr.MissingRole)

	assert.NoError(t, authz.RequireRole(sess, session.RoleGuest))
}

func TestRequireScopeFailure(t *testing.T) {
	sess := &session.Session{Scopes: map[string]struct{}{}}
	err := authz.RequireScope(sess, "admin:all")
	var authzErr *authz.Error
	assert.ErrorAs(t, err, &authzErr)
	assert.Equal(t, "admin:all", authzErr.MissingScope)
}
