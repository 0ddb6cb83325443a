// Package rolemap implements C3: projecting JWT claims onto a primary
// role, a set of custom roles, and unioned permissions/scopes. Determine
// never raises; any internal failure is converted into a MappingFailed
// result, matching the "claim mapping must not throw" invariant.
package rolemap

import (
	"fmt"
	"regexp"

	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// safeClaimValueRegex whitelists characters permitted in a claim value that
// gets interpolated into a CEL expression, blocking CEL injection via
// attacker-controlled claim values while covering legitimate group/role
// values from common identity providers.
var safeClaimValueRegex = regexp.MustCompile(`^[a-zA-Z0-9@.:,;/\-_=+*#!?'~ ]+$`)

// Indicator describes one way a role/permission definition can match the
// inbound claims. Exactly one of Value or Matcher must be set: Value is
// interpolated as `"<value>" in claims["<claim>"]`; Matcher is a raw CEL
// boolean expression evaluated with a `claims` map variable in scope.
type Indicator struct {
	Claim   string
	Value   string
	Matcher string
}

func (i Indicator) validate() error {
	if i.Matcher != "" {
		if i.Claim != "" || i.Value != "" {
			return fmt.Errorf("indicator: matcher is mutually exclusive with claim/value")
		}
		return nil
	}
	if i.Value == "" {
		return fmt.Errorf("indicator: value is required when matcher is unset")
	}
	if !safeClaimValueRegex.MatchString(i.Value) {
		return fmt.Errorf("indicator: claim value %q contains characters unsafe for CEL interpolation", i.Value)
	}
	return nil
}

func (i Indicator) expression(defaultClaim string) string {
	if i.Matcher != "" {
		return i.Matcher
	}
	claim := i.Claim
	if claim == "" {
		claim = defaultClaim
	}
	return fmt.Sprintf(`"%s" in claims["%s"]`, i.Value, claim)
}

// RoleDefinition is one named role category: the indicators that select
// it, and the permissions/scopes it grants when matched.
type RoleDefinition struct {
	Indicators  []Indicator
	Permissions []string
	Scopes      []string
}

// CustomRole pairs a RoleDefinition with its role name, preserving the
// config-file declaration order used as the tie-break priority.
type CustomRole struct {
	Name string
	RoleDefinition
}

// Config is the static role-mapping configuration, built once by the
// orchestrator from auth.trustedIDPs[].role_mappings.
type Config struct {
	// DefaultClaim is used for any Indicator that leaves Claim empty.
	DefaultClaim string
	// ScopeClaim, if set, is a space-separated claim unioned into every
	// result's Scopes regardless of which role matched.
	ScopeClaim string

	Admin  RoleDefinition
	User   RoleDefinition
	Custom []CustomRole
	Guest  RoleDefinition
}

func (c Config) indicatorSets() []struct {
	role string
	def  RoleDefinition
} {
	sets := []struct {
		role string
		def  RoleDefinition
	}{
		{session.RoleAdmin, c.Admin},
		{session.RoleUser, c.User},
	}
	for _, custom := range c.Custom {
		sets = append(sets, struct {
			role string
			def  RoleDefinition
		}{custom.Name, custom.RoleDefinition})
	}
	sets = append(sets, struct {
		role string
		def  RoleDefinition
	}{session.RoleGuest, c.Guest})
	return sets
}
