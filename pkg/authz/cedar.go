package authz

import (
	"fmt"
	"math"
	"strings"

	cedar "github.com/cedar-policy/cedar-go"
)

// ErrNoPolicies is returned by NewCedarAuthorizer when given an empty
// policy set.
var ErrNoPolicies = fmt.Errorf("authz: cedar authorizer requires at least one policy")

// ErrInvalidEntityRef is returned when a principal/action/resource string
// is not of the form Type::"id".
var ErrInvalidEntityRef = fmt.Errorf("authz: entity reference must be of the form Type::\"id\"")

// CedarAuthorizer evaluates a fixed Cedar policy set for hard checks,
// layered over the plain role/scope comparisons. CoreContext carries no
// authorizer: callers construct a CedarAuthorizer themselves and use it
// alongside the RequireRole/RequireScope family in this package.
type CedarAuthorizer struct {
	policies *cedar.PolicySet
}

// NewCedarAuthorizer compiles policies (Cedar policy source, one or more
// policy statements per string) into a PolicySet.
func NewCedarAuthorizer(policies []string) (*CedarAuthorizer, error) {
	if len(policies) == 0 {
		return nil, ErrNoPolicies
	}
	src := strings.Join(policies, "\n")
	ps, err := cedar.NewPolicySetFromBytes("authz.cedar", []byte(src))
	if err != nil {
		return nil, fmt.Errorf("authz: parse cedar policies: %w", err)
	}
	return &CedarAuthorizer{policies: ps}, nil
}

// IsAuthorized evaluates {principal, action, resource} against the
// compiled policy set, with claimCtx exposed as the request's context
// record. principal/action/resource must each be "Type::\"id\"".
func (a *CedarAuthorizer) IsAuthorized(principal, action, resource string, claimCtx map[string]any) (bool, error) {
	principalUID, err := parseEntityRef(principal)
	if err != nil {
		return false, fmt.Errorf("authz: principal: %w", err)
	}
	actionUID, err := parseEntityRef(action)
	if err != nil {
		return false, fmt.Errorf("authz: action: %w", err)
	}
	resourceUID, err := parseEntityRef(resource)
	if err != nil {
		return false, fmt.Errorf("authz: resource: %w", err)
	}

	req := cedar.Request{
		Principal: principalUID,
		Action:    actionUID,
		Resource:  resourceUID,
		Context:   cedar.NewRecord(claimsToRecord(claimCtx)),
	}

	decision, _ := a.policies.IsAuthorized(cedar.EntityMap{}, req)
	return decision == cedar.Allow, nil
}

func parseEntityRef(ref string) (cedar.EntityUID, error) {
	typ, id, ok := strings.Cut(ref, "::")
	if !ok || typ == "" || len(id) < 2 || id[0] != '"' || id[len(id)-1] != '"' {
		return cedar.EntityUID{}, ErrInvalidEntityRef
	}
	return cedar.NewEntityUID(cedar.EntityType(typ), cedar.String(id[1:len(id)-1])), nil
}

// claimsToRecord converts a loosely-typed claims map into a Cedar record,
// skipping values that have no faithful Cedar representation (nested
// maps, non-finite floats) rather than raising.
func claimsToRecord(claims map[string]any) cedar.RecordMap {
	rec := cedar.RecordMap{}
	for k, v := range claims {
		if val, ok := toCedarValue(v); ok {
			rec[cedar.String(k)] = val
		}
	}
	return rec
}

func toCedarValue(v any) (cedar.Value, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return cedar.True, true
		}
		return cedar.False, true
	case string:
		return cedar.String(t), true
	case int:
		return cedar.Long(t), true
	case int64:
		return cedar.Long(t), true
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil, false
		}
		dec, err := cedar.NewDecimalFromFloat(t)
		if err != nil {
			return nil, false
		}
		return dec, true
	case []string:
		set := make([]cedar.Value, 0, len(t))
		for _, s := range t {
			set = append(set, cedar.String(s))
		}
		return cedar.NewSet(set...), true
	case []any:
		set := make([]cedar.Value, 0, len(t))
		for _, elem := range t {
			if val, ok := toCedarValue(elem); ok {
				set = append(set, val)
			}
		}
		return cedar.NewSet(set...), true
	default:
		return nil, false
	}
}
