// Package core implements C9: the CoreContext dependency-injection
// record and the Orchestrator that assembles it from validated config.
// Core (pkg/audit, pkg/jwtvalidator, pkg/rolemap, pkg/session, pkg/authn,
// pkg/tokenexchange, pkg/tokencache) has no knowledge of delegation;
// delegation depends on core via the CoreAccess interface it defines
// itself, never the reverse.
package core

import (
	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/authn"
	"github.com/stacklok/toolhive-authcore/pkg/delegation"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// CoreContext is the single injection object the orchestrator hands to
// the outer transport, and the value each delegation module reaches
// through CallContext.Core during a Delegate call. It is built once by
// Build and never mutated afterward.
type CoreContext struct {
	AuthService       *authn.Service
	AuditService      audit.Service
	DelegationReg     *delegation.Registry
	ConfigManager     ConfigManager
	tokenExchangers   map[string]*tokenexchange.Service
}

// TokenExchange returns the token-exchange service configured for the
// named module, if any. It satisfies delegation.CoreAccess structurally;
// this package imports pkg/delegation to build the registry, but
// pkg/delegation never imports this package back.
func (c *CoreContext) TokenExchange(name string) (*tokenexchange.Service, bool) {
	svc, ok := c.tokenExchangers[name]
	return svc, ok
}

var _ delegation.CoreAccess = (*CoreContext)(nil)
