package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsUnassignedRole(t *testing.T) {
	m := NewManager()
	claims := NewClaims(map[string]any{"sub": "user-1", "iss": "https://idp.test"})
	role := RoleMapResult{PrimaryRole: UnassignedRole, MappingFailed: true, FailureReason: "no match"}

	s, err := m.Create(claims, role)
	require.NoError(t, err)
	assert.True(t, s.Rejected)
	assert.Equal(t, "no match", s.RejectionReason)
	assert.Empty(t, s.Permissions)
	assert.Empty(t, s.Scopes)
}

func TestCreateAcceptsMatchedRole(t *testing.T) {
	m := NewManager()
	claims := NewClaims(map[string]any{"sub": "user-1", "iss": "https://idp.test", "exp": float64(time.Now().Add(time.Hour).Unix())})
	role := RoleMapResult{
		PrimaryRole: RoleAdmin,
		Permissions: map[string]struct{}{"tools:*": {}},
	}

	s, err := m.Create(claims, role)
	require.NoError(t, err)
	assert.False(t, s.Rejected)
	assert.Equal(t, RoleAdmin, s.PrimaryRole)
	assert.Equal(t, CurrentVersion, s.Version)
}

func TestCreateRejectsInvariantViolation(t *testing.T) {
	m := NewManager()
	claims := NewClaims(map[string]any{"sub": "user-1"})
	role := RoleMapResult{
		PrimaryRole: UnassignedRole,
		Permissions: map[string]struct{}{"should-not-exist": {}},
	}

	_, err := m.Create(claims, role)
	require.Error(t, err)
	var invErr *ErrInvariantViolated
	assert.ErrorAs(t, err, &invErr)
}

func TestMigrateIsFixedPointForCurrentVersion(t *testing.T) {
	m := NewManager()
	s := &Session{Version: CurrentVersion, Issuer: "https://idp.test", PrimaryRole: RoleUser}

	once, err := m.Migrate(s)
	require.NoError(t, err)
	twice, err := m.Migrate(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestMigrateLegacyComputesRejectedAndDefaultsIssuer(t *testing.T) {
	m := NewManager()
	legacy := legacySession{UserID: "u1", PrimaryRole: UnassignedRole}

	migrated, err := m.Migrate(legacy)
	require.NoError(t, err)
	assert.Equal(t, "unknown", migrated.Issuer)
	assert.True(t, migrated.Rejected)
	assert.Equal(t, CurrentVersion, migrated.Version)
}
