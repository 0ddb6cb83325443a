package rolemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-authcore/pkg/session"
)

func testConfig() Config {
	return Config{
		DefaultClaim: "groups",
		Admin: RoleDefinition{
			Indicators:  []Indicator{{Value: "admins"}},
			Permissions: []string{"tools:*"},
		},
		User: RoleDefinition{
			Indicators:  []Indicator{{Value: "users"}},
			Permissions: []string{"tools:read"},
		},
		Custom: []CustomRole{
			{
				Name: "ROLE_AUDITOR",
				RoleDefinition: RoleDefinition{
					Indicators:  []Indicator{{Value: "auditors"}},
					Permissions: []string{"audit:read"},
				},
			},
		},
		Guest: RoleDefinition{
			Indicators: []Indicator{{Matcher: `"guests" in claims["groups"]`}},
		},
	}
}

func TestDeterminePicksAdminWithHighestPriority(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	result := m.Determine(map[string]any{"groups": []any{"admins", "users"}})

	assert.Equal(t, session.RoleAdmin, result.PrimaryRole)
	assert.False(t, result.MappingFailed)
	_, hasToolsStar := result.Permissions["tools:*"]
	_, hasToolsRead := result.Permissions["tools:read"]
	assert.True(t, hasToolsStar)
	assert.True(t, hasToolsRead, "permissions from all matched definitions must be unioned")
}

func TestDetermineFallsBackToUnassignedWhenNothingMatches(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	result := m.Determine(map[string]any{"groups": []any{"nobody"}})

	assert.Equal(t, session.UnassignedRole, result.PrimaryRole)
	assert.True(t, result.MappingFailed)
	assert.NotEmpty(t, result.FailureReason)
	assert.Empty(t, result.Permissions)
	assert.Empty(t, result.Scopes)
}

func TestDetermineNeverPanicsOnMalformedInput(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r := m.Determine(nil)
		assert.Equal(t, session.UnassignedRole, r.PrimaryRole)
	})
	assert.NotPanics(t, func() {
		r := m.Determine(map[string]any{"groups": 12345})
		assert.Equal(t, session.UnassignedRole, r.PrimaryRole)
	})
}

func TestDetermineUnionsSpaceSeparatedScopeClaim(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	result := m.Determine(map[string]any{
		"groups": []any{"users"},
		"scope":  "read write",
	})

	assert.Equal(t, session.RoleUser, result.PrimaryRole)
	_, hasRead := result.Scopes["read"]
	_, hasWrite := result.Scopes["write"]
	assert.True(t, hasRead)
	assert.True(t, hasWrite)
}

func TestDetermineCustomRoleRecordedInCustomRoles(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	result := m.Determine(map[string]any{"groups": []any{"users", "auditors"}})

	assert.Equal(t, session.RoleUser, result.PrimaryRole)
	_, isAuditor := result.CustomRoles["ROLE_AUDITOR"]
	assert.True(t, isAuditor)
}

func TestNewRejectsUnsafeClaimValue(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Indicators = []Indicator{{Value: `admins") || true || ("`}}
	_, err := New(cfg)
	assert.Error(t, err)
}
