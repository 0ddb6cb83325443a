package coreconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-authcore/pkg/core"
	"github.com/stacklok/toolhive-authcore/pkg/jwtvalidator"
	"github.com/stacklok/toolhive-authcore/pkg/rolemap"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// Manager loads and validates the YAML config document, binding a small
// set of environment-variable overrides (client secrets, mainly) through
// viper. It satisfies core.ConfigManager.
type Manager struct {
	doc Document
	env *viper.Viper
}

// NewManager reads path, parses it as YAML, and prepares environment
// overrides with the given prefix (e.g. "AUTHCORE" binds
// AUTHCORE_DELEGATION_MODULES_<NAME>_CLIENT_SECRET and
// AUTHCORE_AUTH_AUDIT_REDIS_ADDR). It does not validate the
// document; call Auth/Delegation to trigger validation lazily, mirroring
// the fail-closed behavior described for this core's config layer.
func NewManager(path, envPrefix string) (*Manager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("coreconfig: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("coreconfig: parse %s: %w", path, err)
	}

	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.AutomaticEnv()
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Manager{doc: doc, env: env}, nil
}

// Auth builds and validates the auth config subtree.
func (m *Manager) Auth() (core.AuthConfig, error) {
	idps := make([]jwtvalidator.TrustedIDP, 0, len(m.doc.Auth.TrustedIDPs))
	for _, s := range m.doc.Auth.TrustedIDPs {
		idp := jwtvalidator.TrustedIDP{
			Name:              s.Name,
			Issuer:            s.Issuer,
			JWKSURI:           s.JWKSURI,
			Audience:          s.Audience,
			AllowedAlgorithms: s.AllowedAlgorithms,
			ClockSkew:         secondsToDuration(s.ClockSkewSeconds),
			MaxTokenAge:       secondsToDuration(s.MaxTokenAgeSeconds),
		}
		if err := idp.Validate(); err != nil {
			return core.AuthConfig{}, fmt.Errorf("coreconfig: trusted idp %q: %w", s.Name, err)
		}
		idps = append(idps, idp)
	}

	roleMapping, err := buildRoleMappingConfig(m.doc.Auth.TrustedIDPs)
	if err != nil {
		return core.AuthConfig{}, err
	}

	return core.AuthConfig{
		TrustedIDPs: idps,
		RoleMapping: roleMapping,
		Audit: core.AuditConfig{
			Enabled:     m.doc.Auth.Audit.Enabled,
			MaxEntries:  m.doc.Auth.Audit.MaxEntries,
			RedisAddr:   m.envOverride("AUTH_AUDIT_REDIS_ADDR", m.doc.Auth.Audit.RedisAddr),
			RedisStream: m.doc.Auth.Audit.RedisStream,
		},
	}, nil
}

// Delegation builds and validates the delegation config subtree, applying
// the top-level tokenExchange block to any module that does not declare
// its own.
func (m *Manager) Delegation() (core.DelegationConfig, error) {
	modules := make(map[string]core.ModuleConfig, len(m.doc.Delegation.Modules))
	for name, s := range m.doc.Delegation.Modules {
		mc := core.ModuleConfig{Type: s.Type, Settings: s.Settings}

		exch := s.TokenExchange
		if exch == nil {
			exch = m.doc.TokenExchange
		}
		if exch != nil {
			cfg, cache, err := buildExchangeConfig(name, exch, m)
			if err != nil {
				return core.DelegationConfig{}, err
			}
			mc.TokenExchange = &cfg
			mc.Cache = cache
		}

		modules[name] = mc
	}
	return core.DelegationConfig{Modules: modules}, nil
}

// MCP returns the optional mcp subtree verbatim; it is consumed by the
// transport, never by the core.
func (m *Manager) MCP() (map[string]any, bool) {
	if m.doc.MCP == nil {
		return nil, false
	}
	return m.doc.MCP, true
}

func buildExchangeConfig(moduleName string, s *exchangeSection, m *Manager) (tokenexchange.Config, core.CacheConfig, error) {
	secretKey := fmt.Sprintf("DELEGATION_MODULES_%s_CLIENT_SECRET", strings.ToUpper(moduleName))
	cfg := tokenexchange.Config{
		TokenEndpoint:   s.TokenEndpoint,
		ClientID:        s.ClientID,
		ClientSecret:    m.envOverride(secretKey, s.ClientSecret),
		DefaultAudience: s.Audience,
		DefaultScope:    s.DefaultScope,
	}
	if err := cfg.Validate(); err != nil {
		return tokenexchange.Config{}, core.CacheConfig{}, fmt.Errorf("coreconfig: module %q token exchange: %w", moduleName, err)
	}

	var cache core.CacheConfig
	if s.Cache != nil {
		cache = core.CacheConfig{
			Enabled:               s.Cache.Enabled,
			SessionTimeoutSeconds: s.Cache.SessionTimeoutSeconds,
			MaxEntriesPerSession:  s.Cache.MaxEntriesPerSession,
			MaxTotalEntries:       s.Cache.MaxTotalEntries,
			MaxTTLSeconds:         s.Cache.TTLSeconds,
		}
	}
	return cfg, cache, nil
}

// buildRoleMappingConfig consolidates every trusted IDP's role_mappings
// section into one rolemap.Config: role determination operates purely on
// validated claims (see pkg/rolemap), so a single shared mapper serves
// every issuer. Deployments that need issuer-specific role semantics
// should normalize that distinction into the claims themselves upstream.
func buildRoleMappingConfig(idps []trustedIDPSection) (rolemap.Config, error) {
	var cfg rolemap.Config
	for _, idp := range idps {
		rm := idp.RoleMappings
		cfg.Admin.Indicators = append(cfg.Admin.Indicators, toIndicators(rm.Admin)...)
		cfg.User.Indicators = append(cfg.User.Indicators, toIndicators(rm.User)...)
		cfg.Guest.Indicators = append(cfg.Guest.Indicators, toIndicators(rm.Guest)...)
		for _, custom := range rm.Custom {
			cfg.Custom = append(cfg.Custom, rolemap.CustomRole{
				Name:           custom.Name,
				RoleDefinition: rolemap.RoleDefinition{Indicators: toIndicators(custom.Indicators)},
			})
		}
	}
	return cfg, nil
}

func toIndicators(in []indicatorSection) []rolemap.Indicator {
	out := make([]rolemap.Indicator, 0, len(in))
	for _, i := range in {
		out = append(out, rolemap.Indicator{Claim: i.Claim, Value: i.Value, Matcher: i.Matcher})
	}
	return out
}

func (m *Manager) envOverride(key, fallback string) string {
	if v := m.env.GetString(key); v != "" {
		return v
	}
	return fallback
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
