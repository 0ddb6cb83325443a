package core

import (
	"github.com/stacklok/toolhive-authcore/pkg/jwtvalidator"
	"github.com/stacklok/toolhive-authcore/pkg/rolemap"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// AuditConfig mirrors the auth.audit config subtree.
type AuditConfig struct {
	Enabled      bool
	MaxEntries   int
	RedisAddr    string // optional fan-out sink; empty disables it
	RedisStream  string
}

// AuthConfig mirrors the auth config subtree: the trusted IDP list plus
// the role mapping applied uniformly to every IDP's validated claims
// (role determination is a pure function of claims, not issuer identity,
// so one shared RoleMapper suffices across all configured IDPs).
type AuthConfig struct {
	TrustedIDPs []jwtvalidator.TrustedIDP
	RoleMapping rolemap.Config
	Audit       AuditConfig
}

// CacheConfig mirrors a tokenExchange.cache subtree.
type CacheConfig struct {
	Enabled               bool
	SessionTimeoutSeconds int
	MaxEntriesPerSession  int
	MaxTotalEntries       int
	MaxTTLSeconds         int
}

// ModuleConfig is one entry of delegation.modules: a module's backend
// type, its own free-form settings, and an optional token-exchange
// client used to reach its downstream audience.
type ModuleConfig struct {
	Type          string
	Settings      map[string]any
	TokenExchange *tokenexchange.Config
	Cache         CacheConfig
}

// DelegationConfig mirrors the delegation config subtree.
type DelegationConfig struct {
	Modules map[string]ModuleConfig
}

// ConfigManager is the collaborator the Orchestrator consults to load
// validated config subtrees. A reference YAML+viper implementation lives
// in pkg/coreconfig; tests typically supply a literal struct instead.
type ConfigManager interface {
	Auth() (AuthConfig, error)
	Delegation() (DelegationConfig, error)
	MCP() (map[string]any, bool)
}
