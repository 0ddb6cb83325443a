package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-authcore/pkg/authz"
)

func TestNewCedarAuthorizerRejectsEmptyPolicySet(t *testing.T) {
	_, err := authz.NewCedarAuthorizer(nil)
	assert.ErrorIs(t, err, authz.ErrNoPolicies)
}

func TestCedarAuthorizerAllowsPermittedAction(t *testing.T) {
	a, err := authz.NewCedarAuthorizer([]string{
		`permit(principal, action == Action::"call_tool", resource == Tool::"weather")
		 when { context.role == "admin" };`,
	})
	require.NoError(t, err)

	allowed, err := a.IsAuthorized(`User::"alice"`, `Action::"call_tool"`, `Tool::"weather"`, map[string]any{"role": "admin"})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = a.IsAuthorized(`User::"alice"`, `Action::"call_tool"`, `Tool::"weather"`, map[string]any{"role": "guest"})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCedarAuthorizerRejectsMalformedEntityRefs(t *testing.T) {
	a, err := authz.NewCedarAuthorizer([]string{`permit(principal, action, resource);`})
	require.NoError(t, err)

	_, err = a.IsAuthorized("not-an-entity-ref", `Action::"x"`, `Tool::"x"`, nil)
	assert.ErrorIs(t, err, authz.ErrInvalidEntityRef)
}
