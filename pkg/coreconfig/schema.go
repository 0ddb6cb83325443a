// Package coreconfig is the reference core.ConfigManager implementation:
// a YAML document parsed with gopkg.in/yaml.v3, with environment-variable
// overrides bound through github.com/spf13/viper. The structural parse
// always runs through yaml.v3 so the fail-closed validation below (HTTPS
// enforcement, non-empty client credentials) runs against a precisely typed
// document; viper is consulted only for specific override keys, never for
// the top-level structure.
package coreconfig

// Document is the root of the YAML config file.
type Document struct {
	Auth         authSection         `yaml:"auth"`
	Delegation   delegationSection   `yaml:"delegation"`
	MCP          map[string]any      `yaml:"mcp,omitempty"`
	TokenExchange *exchangeSection   `yaml:"tokenExchange,omitempty"`
}

type authSection struct {
	TrustedIDPs []trustedIDPSection `yaml:"trustedIDPs"`
	Audit       auditSection        `yaml:"audit"`
}

type auditSection struct {
	Enabled     bool   `yaml:"enabled"`
	MaxEntries  int    `yaml:"maxEntries,omitempty"`
	RedisAddr   string `yaml:"redisAddr,omitempty"`
	RedisStream string `yaml:"redisStream,omitempty"`
}

type roleMappingsSection struct {
	Admin  []indicatorSection   `yaml:"admin,omitempty"`
	User   []indicatorSection   `yaml:"user,omitempty"`
	Guest  []indicatorSection   `yaml:"guest,omitempty"`
	Custom []customRoleSection  `yaml:"custom,omitempty"`
}

// customRoleSection is a sequence, not a map, so document order survives
// into rolemap.Config.Custom: role mapping tries custom roles in
// configured order, and a map would randomize that order on every load.
type customRoleSection struct {
	Name       string             `yaml:"name"`
	Indicators []indicatorSection `yaml:"indicators,omitempty"`
}

type indicatorSection struct {
	Claim   string `yaml:"claim,omitempty"`
	Value   string `yaml:"value,omitempty"`
	Matcher string `yaml:"matcher,omitempty"`
}

type trustedIDPSection struct {
	Name              string              `yaml:"name"`
	Issuer            string              `yaml:"issuer"`
	JWKSURI           string              `yaml:"jwks_uri"`
	Audience          []string            `yaml:"audience"`
	AllowedAlgorithms []string            `yaml:"allowed_algorithms,omitempty"`
	ClockSkewSeconds  int                 `yaml:"clock_skew_seconds,omitempty"`
	MaxTokenAgeSeconds int                `yaml:"max_token_age_seconds,omitempty"`
	RoleMappings      roleMappingsSection `yaml:"role_mappings,omitempty"`
}

type delegationSection struct {
	Modules           map[string]moduleSection `yaml:"modules"`
	DefaultToolPrefix string                   `yaml:"defaultToolPrefix,omitempty"`
}

type moduleSection struct {
	Type          string             `yaml:"type"`
	Settings      map[string]any     `yaml:",inline"`
	TokenExchange *exchangeSection   `yaml:"tokenExchange,omitempty"`
}

type exchangeSection struct {
	TokenEndpoint         string   `yaml:"token_endpoint"`
	ClientID              string   `yaml:"client_id"`
	ClientSecret          string   `yaml:"client_secret"`
	Audience              string   `yaml:"audience,omitempty"`
	DefaultScope          []string `yaml:"default_scope,omitempty"`
	Cache                 *cacheSection `yaml:"cache,omitempty"`
}

type cacheSection struct {
	Enabled               bool `yaml:"enabled"`
	TTLSeconds            int  `yaml:"ttl_seconds,omitempty"`
	SessionTimeoutSeconds int  `yaml:"session_timeout_seconds,omitempty"`
	MaxEntriesPerSession  int  `yaml:"max_entries_per_session,omitempty"`
	MaxTotalEntries       int  `yaml:"max_total_entries,omitempty"`
}
