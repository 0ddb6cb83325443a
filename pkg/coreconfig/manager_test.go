package coreconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
auth:
  trustedIDPs:
    - name: test-idp
      issuer: https://idp.test
      jwks_uri: https://idp.test/.well-known/jwks.json
      audience: ["api"]
      role_mappings:
        admin:
          - value: admins
        guest:
          - matcher: '"nobody" in claims["groups"]'
        custom:
          - name: ROLE_AUDITOR
            indicators:
              - value: auditors
          - name: ROLE_BILLING
            indicators:
              - value: billing
  audit:
    enabled: true
    maxEntries: 500
delegation:
  modules:
    db:
      type: sql
      tokenExchange:
        token_endpoint: https://idp.test/token
        client_id: resource-server
        client_secret: shh
        cache:
          enabled: true
          session_timeout_seconds: 1800
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestManagerAuthLoadsTrustedIDPsAndRoleMappings(t *testing.T) {
	path := writeTestConfig(t, testYAML)
	mgr, err := NewManager(path, "AUTHCORE_TEST")
	require.NoError(t, err)

	authCfg, err := mgr.Auth()
	require.NoError(t, err)
	require.Len(t, authCfg.TrustedIDPs, 1)
	assert.Equal(t, "test-idp", authCfg.TrustedIDPs[0].Name)
	assert.Len(t, authCfg.RoleMapping.Admin.Indicators, 1)
	assert.Len(t, authCfg.RoleMapping.Guest.Indicators, 1)
	assert.True(t, authCfg.Audit.Enabled)
	assert.Equal(t, 500, authCfg.Audit.MaxEntries)

	require.Len(t, authCfg.RoleMapping.Custom, 2)
	assert.Equal(t, "ROLE_AUDITOR", authCfg.RoleMapping.Custom[0].Name)
	assert.Equal(t, "ROLE_BILLING", authCfg.RoleMapping.Custom[1].Name)
}

func TestManagerAuthPreservesCustomRoleOrderAcrossMultipleIDPs(t *testing.T) {
	path := writeTestConfig(t, `
auth:
  trustedIDPs:
    - name: idp-a
      issuer: https://idp-a.test
      jwks_uri: https://idp-a.test/jwks.json
      audience: ["api"]
      role_mappings:
        custom:
          - name: ROLE_ONE
            indicators: [{value: one}]
          - name: ROLE_TWO
            indicators: [{value: two}]
    - name: idp-b
      issuer: https://idp-b.test
      jwks_uri: https://idp-b.test/jwks.json
      audience: ["api"]
      role_mappings:
        custom:
          - name: ROLE_THREE
            indicators: [{value: three}]
delegation:
  modules: {}
`)
	mgr, err := NewManager(path, "AUTHCORE_TEST")
	require.NoError(t, err)

	authCfg, err := mgr.Auth()
	require.NoError(t, err)

	require.Len(t, authCfg.RoleMapping.Custom, 3)
	assert.Equal(t, []string{"ROLE_ONE", "ROLE_TWO", "ROLE_THREE"},
		[]string{authCfg.RoleMapping.Custom[0].Name, authCfg.RoleMapping.Custom[1].Name, authCfg.RoleMapping.Custom[2].Name})
}

func TestManagerDelegationBuildsTokenExchangeConfig(t *testing.T) {
	path := writeTestConfig(t, testYAML)
	mgr, err := NewManager(path, "AUTHCORE_TEST")
	require.NoError(t, err)

	delegCfg, err := mgr.Delegation()
	require.NoError(t, err)
	require.Contains(t, delegCfg.Modules, "db")
	db := delegCfg.Modules["db"]
	require.NotNil(t, db.TokenExchange)
	assert.Equal(t, "https://idp.test/token", db.TokenExchange.TokenEndpoint)
	assert.True(t, db.Cache.Enabled)
	assert.Equal(t, 1800, db.Cache.SessionTimeoutSeconds)
}

func TestManagerAuthRejectsPlainHTTPJWKS(t *testing.T) {
	path := writeTestConfig(t, `
auth:
  trustedIDPs:
    - name: bad-idp
      issuer: https://idp.test
      jwks_uri: http://idp.test/jwks.json
      audience: ["api"]
delegation:
  modules: {}
`)
	mgr, err := NewManager(path, "AUTHCORE_TEST")
	require.NoError(t, err)

	_, err = mgr.Auth()
	assert.Error(t, err)
}
