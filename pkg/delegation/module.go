// Package delegation implements C8: the named registry of delegation
// modules and the module contract they satisfy. A module's authority
// comes from a downstream delegation token it exchanges for itself
// (typically via CoreAccess.TokenExchange), never from the requestor's
// own session claims -- the session only gates whether a tool is reached
// at all (the two-stage authorization split described in spec §4.8).
package delegation

import (
	"context"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/session"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// CoreAccess is the subset of CoreContext (C9) a delegation module may
// reach through its per-call context. It is defined here, not in
// pkg/core, so the import edge between the two packages runs one way:
// pkg/core depends on pkg/delegation to build its registry; pkg/core's
// CoreContext in turn satisfies this interface structurally, without
// pkg/delegation ever importing pkg/core. A module that needs the
// token-exchange service reaches it through here rather than capturing
// CoreContext beyond the single Delegate call.
type CoreAccess interface {
	// TokenExchange returns the token-exchange service registered under
	// name (conventionally the module's own name), if any.
	TokenExchange(name string) (*tokenexchange.Service, bool)
}

// CallContext is passed to every Module.Delegate call. It is never
// retained by the module past the call that received it.
type CallContext struct {
	SessionID string
	Core      CoreAccess
}

// Result is the outcome of a single delegate() call (C8's
// DelegationResult<T>). Data is deliberately untyped here; callers that
// want a typed result use the package-level Delegate helper, which
// type-asserts Data for them.
type Result struct {
	Success    bool
	Data       any
	Err        error
	AuditTrail audit.Entry
}

// Module is the delegation module contract. Implementations are
// illustrative backends (SQL-like, HTTP-API-like, directory-service-like,
// ...) that this core does not ship production versions of; see
// delegationtest for contract-exercising stubs used in tests.
type Module interface {
	// Name is this module's unique registry key.
	Name() string
	// Type identifies the module's backend kind (e.g. "sql", "http-api",
	// "directory"), driven by explicit config rather than a name-prefix
	// convention.
	Type() string
	// Initialize prepares the module from its config subtree. Called
	// once by Registry.InitializeAll before the module can serve
	// Delegate calls.
	Initialize(cfg map[string]any) error
	// Delegate performs one authenticated action. sess gates access to
	// the tool; it must never be used to authorize the downstream
	// action directly -- that authority comes from whatever delegation
	// token the module itself obtains.
	Delegate(ctx context.Context, sess *session.Session, action string, params map[string]any, call CallContext) Result
	// ValidateAccess is a quick, side-effect-free check of whether sess
	// may use this module at all, independent of any specific action.
	ValidateAccess(sess *session.Session) bool
	// HealthCheck reports whether the module is currently able to serve
	// Delegate calls.
	HealthCheck(ctx context.Context) bool
	// Destroy releases any resources the module holds (connections,
	// background goroutines). Called once by Registry.DestroyAll.
	Destroy() error
}
