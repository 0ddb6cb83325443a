package rolemap

import (
	"fmt"
	"strings"

	"github.com/stacklok/toolhive-authcore/pkg/logger"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

type compiledDefinition struct {
	role        string
	indicators  []compiledIndicator
	permissions []string
	scopes      []string
}

// Mapper projects claims onto a session.RoleMapResult. core.Build builds
// one Mapper shared by every TrustedIDP. It is safe for concurrent use;
// all compiled CEL programs are read-only after construction.
type Mapper struct {
	cfg         Config
	definitions []compiledDefinition
}

// New compiles cfg's indicators and returns a Mapper. An error here is a
// configuration error surfaced at orchestrator build time; it is distinct
// from Determine, which never fails once a Mapper exists.
func New(cfg Config) (*Mapper, error) {
	defaultClaim := cfg.DefaultClaim
	if defaultClaim == "" {
		defaultClaim = "roles"
	}

	m := &Mapper{cfg: cfg}
	for _, set := range cfg.indicatorSets() {
		compiled, err := compileDefinition(set.role, set.def, defaultClaim)
		if err != nil {
			return nil, err
		}
		m.definitions = append(m.definitions, compiled)
	}
	return m, nil
}

func compileDefinition(role string, def RoleDefinition, defaultClaim string) (compiledDefinition, error) {
	out := compiledDefinition{role: role, permissions: def.Permissions, scopes: def.Scopes}
	for _, ind := range def.Indicators {
		if err := ind.validate(); err != nil {
			return compiledDefinition{}, fmt.Errorf("role %q: %w", role, err)
		}
		compiled, err := compileIndicator(ind.expression(defaultClaim))
		if err != nil {
			return compiledDefinition{}, fmt.Errorf("role %q: %w", role, err)
		}
		out.indicators = append(out.indicators, compiled)
	}
	return out, nil
}

// Determine projects claims onto a RoleMapResult. It never panics: any
// internal failure (a nil/malformed claims map, a CEL evaluation panic)
// is converted into an UNASSIGNED_ROLE, mapping_failed result.
func (m *Mapper) Determine(claims map[string]any) (result session.RoleMapResult) {
	defer func() {
		if r := recover(); r != nil {
			result = unassignedResult(fmt.Sprintf("role mapping panicked: %v", r))
		}
	}()

	if claims == nil {
		claims = map[string]any{}
	}

	primary := session.UnassignedRole
	primarySet := false
	permissions := map[string]struct{}{}
	scopes := map[string]struct{}{}
	custom := map[string]struct{}{}

	for _, def := range m.definitions {
		matched := def.matches(claims)
		if !matched {
			continue
		}

		if !primarySet {
			primary = def.role
			primarySet = true
		} else if def.role != session.RoleAdmin && def.role != session.RoleUser && def.role != session.RoleGuest {
			custom[def.role] = struct{}{}
		}

		for _, p := range def.permissions {
			permissions[p] = struct{}{}
		}
		for _, s := range def.scopes {
			scopes[s] = struct{}{}
		}
	}

	for _, s := range spaceSeparated(claims[m.scopeClaim()]) {
		scopes[s] = struct{}{}
	}

	if !primarySet {
		return unassignedResult("no admin, user, custom, or guest indicator matched the supplied claims")
	}

	return session.RoleMapResult{
		PrimaryRole: primary,
		CustomRoles: custom,
		Permissions: permissions,
		Scopes:      scopes,
	}
}

func (m *Mapper) scopeClaim() string {
	if m.cfg.ScopeClaim == "" {
		return "scope"
	}
	return m.cfg.ScopeClaim
}

func (d compiledDefinition) matches(claims map[string]any) bool {
	for _, ind := range d.indicators {
		ok, err := ind.evaluate(claims)
		if err != nil {
			logger.Debugw("rolemap: indicator evaluation failed, treating as non-match", "role", d.role, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func unassignedResult(reason string) session.RoleMapResult {
	return session.RoleMapResult{
		PrimaryRole:   session.UnassignedRole,
		MappingFailed: true,
		FailureReason: reason,
	}
}

func spaceSeparated(v any) []string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}
