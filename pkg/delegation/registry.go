package delegation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// Registry is the named map of delegation modules (C8). Registration is
// expected pre-startup, but runtime registration is permitted; dispatch
// itself only ever takes a read lock, so it never contends with another
// in-flight delegate call.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	audit   audit.Service
}

// NewRegistry builds an empty Registry. auditSvc may be audit.NewNoop().
func NewRegistry(auditSvc audit.Service) *Registry {
	if auditSvc == nil {
		auditSvc = audit.NewNoop()
	}
	return &Registry{modules: make(map[string]Module), audit: auditSvc}
}

// Register adds m to the registry under m.Name(). It is an error to
// register two modules with the same name.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, m.Name())
	}
	r.modules[m.Name()] = m
	return nil
}

// Unregister removes a module. A no-op if name is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// Get returns the module registered under name, if any.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// List returns the names of every registered module.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	return names
}

// InitializeAll calls Initialize on every registered module with its
// config subtree from configs (keyed by module name). It stops at the
// first failure; modules initialized before the failure remain
// registered and initialized.
func (r *Registry) InitializeAll(configs map[string]map[string]any) error {
	for _, name := range r.List() {
		m, ok := r.Get(name)
		if !ok {
			continue
		}
		if err := m.Initialize(configs[name]); err != nil {
			return fmt.Errorf("delegation: initialize module %q: %w", name, err)
		}
	}
	return nil
}

// DestroyAll calls Destroy on every registered module, continuing past
// individual failures and returning the first one encountered.
func (r *Registry) DestroyAll() error {
	var first error
	for _, name := range r.List() {
		m, ok := r.Get(name)
		if !ok {
			continue
		}
		if err := m.Destroy(); err != nil && first == nil {
			first = fmt.Errorf("delegation: destroy module %q: %w", name, err)
		}
	}
	return first
}

// Delegate routes a delegate() call to moduleName, logging exactly one
// audit entry per call before returning -- the module's own AuditTrail
// when it set one, or a registry-synthesized entry otherwise (e.g. when
// the module could not even be found). This is the only place in the
// core that logs a delegation event, so modules themselves never need an
// audit.Service reference.
func (r *Registry) Delegate(
	ctx context.Context,
	moduleName string,
	sess *session.Session,
	action string,
	params map[string]any,
	sessionID string,
	core CoreAccess,
) Result {
	mod, ok := r.Get(moduleName)
	if !ok {
		return r.logAndReturn(Result{
			Success: false,
			Err:     fmt.Errorf("%w: %s", ErrModuleNotFound, moduleName),
		}, moduleName, action, sess)
	}

	if !mod.HealthCheck(ctx) {
		return r.logAndReturn(Result{
			Success: false,
			Err:     fmt.Errorf("%w: %s", ErrModuleNotReady, moduleName),
		}, moduleName, action, sess)
	}

	result := mod.Delegate(ctx, sess, action, params, CallContext{SessionID: sessionID, Core: core})
	return r.logAndReturn(result, moduleName, action, sess)
}

func (r *Registry) logAndReturn(result Result, moduleName, action string, sess *session.Session) Result {
	if result.AuditTrail.Source == "" {
		entry := audit.Entry{
			Timestamp: time.Now(),
			Source:    "delegation:registry",
			UserID:    userIDOf(sess),
			Action:    action,
			Success:   result.Success,
			Metadata:  map[string]any{"module": moduleName},
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		result.AuditTrail = entry
	}
	_ = r.audit.Log(result.AuditTrail)
	return result
}

func userIDOf(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.UserID
}

// Delegate is a typed convenience wrapper around Registry.Delegate: it
// type-asserts the untyped Result.Data into T, since Go interface methods
// cannot themselves carry a type parameter.
func Delegate[T any](
	ctx context.Context,
	r *Registry,
	moduleName string,
	sess *session.Session,
	action string,
	params map[string]any,
	sessionID string,
	core CoreAccess,
) (T, Result) {
	result := r.Delegate(ctx, moduleName, sess, action, params, sessionID, core)
	var zero T
	if !result.Success {
		return zero, result
	}
	data, ok := result.Data.(T)
	if !ok {
		result.Success = false
		result.Err = fmt.Errorf("delegation: result data is %T, not %T", result.Data, zero)
		return zero, result
	}
	return data, result
}
