package core

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/authn"
	"github.com/stacklok/toolhive-authcore/pkg/delegation"
	"github.com/stacklok/toolhive-authcore/pkg/jwtvalidator"
	"github.com/stacklok/toolhive-authcore/pkg/rolemap"
	"github.com/stacklok/toolhive-authcore/pkg/tokencache"
	"github.com/stacklok/toolhive-authcore/pkg/tokenexchange"
)

// ErrInvariantViolated marks a CONFIG_INVALID / INVARIANT_VIOLATED
// failure discovered during Build's final validation pass: assembly
// succeeded but the result is unusable (a nil field, an empty trusted-IDP
// list, a module that never reports healthy).
var ErrInvariantViolated = fmt.Errorf("core: invariant violated")

// Build runs the full orchestrator sequence described by the core's
// design: load config, build C1-C5, build the delegation registry and
// initialize every supplied module, validate the assembled CoreContext,
// and return it. Validation runs here, at build time, so a bad
// deployment aborts startup instead of failing the first request.
//
// modules are pre-constructed delegation.Module instances the caller
// wants registered, keyed by the same name used in the delegation.modules
// config subtree; Build does not itself know how to construct a SQL,
// HTTP, or directory backend.
func Build(ctx context.Context, cfgMgr ConfigManager, modules map[string]delegation.Module, httpClient *http.Client) (*CoreContext, error) {
	authCfg, err := cfgMgr.Auth()
	if err != nil {
		return nil, fmt.Errorf("core: load auth config: %w", err)
	}
	delegationCfg, err := cfgMgr.Delegation()
	if err != nil {
		return nil, fmt.Errorf("core: load delegation config: %w", err)
	}

	auditSvc := buildAuditService(authCfg.Audit)

	dispatcher, err := jwtvalidator.NewDispatcher(ctx, authCfg.TrustedIDPs, httpClient)
	if err != nil {
		return nil, fmt.Errorf("core: build jwt dispatcher: %w", err)
	}

	mapper, err := rolemap.New(authCfg.RoleMapping)
	if err != nil {
		return nil, fmt.Errorf("core: build role mapper: %w", err)
	}

	authService := authn.NewService(dispatcher, mapper, auditSvc)

	exchangers, err := buildTokenExchangers(delegationCfg, auditSvc)
	if err != nil {
		return nil, err
	}

	registry := delegation.NewRegistry(auditSvc)
	for name, mod := range modules {
		if err := registry.Register(mod); err != nil {
			return nil, fmt.Errorf("core: register module %q: %w", name, err)
		}
	}

	configs := make(map[string]map[string]any, len(delegationCfg.Modules))
	for name, mc := range delegationCfg.Modules {
		configs[name] = mc.Settings
	}
	if err := registry.InitializeAll(configs); err != nil {
		return nil, fmt.Errorf("core: initialize delegation modules: %w", err)
	}

	cc := &CoreContext{
		AuthService:     authService,
		AuditService:    auditSvc,
		DelegationReg:   registry,
		ConfigManager:   cfgMgr,
		tokenExchangers: exchangers,
	}

	if err := validate(ctx, cc, authCfg); err != nil {
		return nil, err
	}

	return cc, nil
}

func buildAuditService(cfg AuditConfig) audit.Service {
	if !cfg.Enabled {
		return audit.NewNoop()
	}
	var sinks []audit.Sink
	if cfg.RedisAddr != "" {
		client := redisClient(cfg.RedisAddr)
		sinks = append(sinks, audit.NewRedisStreamSink(client, cfg.RedisStream))
	}
	return audit.NewStore(cfg.MaxEntries, nil, sinks...)
}

func buildTokenExchangers(cfg DelegationConfig, auditSvc audit.Service) (map[string]*tokenexchange.Service, error) {
	sharedCache := sharedExchangeCache(cfg)

	exchangers := make(map[string]*tokenexchange.Service, len(cfg.Modules))
	for name, mc := range cfg.Modules {
		if mc.TokenExchange == nil {
			continue
		}
		var cache tokenexchange.Cache
		if mc.Cache.Enabled {
			cache = sharedCache
		}
		svc, err := tokenexchange.New(*mc.TokenExchange, cache, auditSvc)
		if err != nil {
			return nil, fmt.Errorf("core: build token exchange for module %q: %w", name, err)
		}
		exchangers[name] = svc
	}
	return exchangers, nil
}

// sharedExchangeCache lazily builds one process-wide EncryptedTokenCache,
// sized from whichever module's cache config is enabled first (cache
// entries are already namespaced by session_id+audience, so one instance
// safely serves every module's token-exchange service).
func sharedExchangeCache(cfg DelegationConfig) *tokencache.ExchangeCache {
	for _, mc := range cfg.Modules {
		if !mc.Cache.Enabled {
			continue
		}
		tcCfg := tokencache.Config{}
		if mc.Cache.MaxEntriesPerSession > 0 {
			tcCfg.MaxEntriesPerSession = mc.Cache.MaxEntriesPerSession
		}
		if mc.Cache.MaxTotalEntries > 0 {
			tcCfg.MaxTotalEntries = mc.Cache.MaxTotalEntries
		}
		if mc.Cache.SessionTimeoutSeconds > 0 {
			tcCfg.SessionTimeout = secondsToDuration(mc.Cache.SessionTimeoutSeconds)
		}
		if mc.Cache.MaxTTLSeconds > 0 {
			tcCfg.MaxTTL = secondsToDuration(mc.Cache.MaxTTLSeconds)
		}
		return tokencache.NewExchangeCache(tokencache.New(tcCfg))
	}
	return nil
}

// validate enforces step 5 of the orchestrator sequence: every CoreContext
// field is non-nil, every registered module passes its health check, and
// the trusted-IDP list is non-empty. A failure here is CONFIG_INVALID /
// INVARIANT_VIOLATED and aborts Build rather than surfacing at request
// time.
func validate(ctx context.Context, cc *CoreContext, authCfg AuthConfig) error {
	if len(authCfg.TrustedIDPs) == 0 {
		return fmt.Errorf("%w: no trusted IDPs configured", ErrInvariantViolated)
	}
	if cc.AuthService == nil || cc.AuditService == nil || cc.DelegationReg == nil || cc.ConfigManager == nil {
		return fmt.Errorf("%w: CoreContext has a nil field after assembly", ErrInvariantViolated)
	}
	for _, name := range cc.DelegationReg.List() {
		mod, ok := cc.DelegationReg.Get(name)
		if !ok {
			continue
		}
		if !mod.HealthCheck(ctx) {
			return fmt.Errorf("%w: module %q failed its post-initialize health check", ErrInvariantViolated, name)
		}
	}
	return nil
}
