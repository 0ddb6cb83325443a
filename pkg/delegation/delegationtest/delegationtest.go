// Package delegationtest provides illustrative delegation.Module
// implementations used to exercise the module contract end to end in
// tests. None of these are meant to back a real backend; they stand in
// for the SQL-like, HTTP-API-like, and directory-service-like modules a
// deployment would configure in their place.
package delegationtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stacklok/toolhive-authcore/pkg/delegation"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// SQLModule stands in for a module that exchanges a delegation token and
// runs a parameterized query against a relational backend. It keeps an
// in-memory table instead of an actual connection.
type SQLModule struct {
	mu        sync.Mutex
	name      string
	rows      map[string][]map[string]any
	ready     bool
	destroyed bool
}

// NewSQLModule builds a SQLModule registered under name.
func NewSQLModule(name string) *SQLModule {
	return &SQLModule{name: name, rows: make(map[string][]map[string]any)}
}

func (m *SQLModule) Name() string { return m.name }
func (m *SQLModule) Type() string { return "sql" }

// Initialize accepts an optional "seed" entry mapping table name to rows,
// simulating a connection pool warm-up.
func (m *SQLModule) Initialize(cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seed, ok := cfg["seed"].(map[string][]map[string]any); ok {
		for table, rows := range seed {
			m.rows[table] = rows
		}
	}
	m.ready = true
	return nil
}

// ValidateAccess refuses a nil session and any session holding the
// ROLE_GUEST role; every other role, custom roles included, is accepted.
func (m *SQLModule) ValidateAccess(sess *session.Session) bool {
	return sess != nil && !sess.HasRole(session.RoleGuest)
}

func (m *SQLModule) HealthCheck(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && !m.destroyed
}

func (m *SQLModule) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	return nil
}

// Delegate supports a single action, "query", reading params["table"].
// It refuses to run unless CallContext.Core has a token-exchange service
// registered under the module's name, but it performs no exchange itself:
// the rows come from the module's in-memory seed data.
func (m *SQLModule) Delegate(_ context.Context, sess *session.Session, action string, params map[string]any, call delegation.CallContext) delegation.Result {
	if !m.ValidateAccess(sess) {
		return delegation.Result{Success: false, Err: fmt.Errorf("sql: access denied")}
	}
	if action != "query" {
		return delegation.Result{Success: false, Err: fmt.Errorf("sql: unsupported action %q", action)}
	}
	table, _ := params["table"].(string)

	if _, ok := call.Core.TokenExchange(m.name); !ok {
		return delegation.Result{Success: false, Err: fmt.Errorf("sql: no token-exchange service configured for %q", m.name)}
	}

	m.mu.Lock()
	rows := append([]map[string]any(nil), m.rows[table]...)
	m.mu.Unlock()

	return delegation.Result{Success: true, Data: rows}
}

// HTTPModule stands in for a module that calls a downstream REST API on
// the caller's behalf using an exchanged delegation token.
type HTTPModule struct {
	mu       sync.Mutex
	name     string
	ready    bool
	handlers map[string]func(params map[string]any) (any, error)
}

// NewHTTPModule builds an HTTPModule with the given action handlers.
func NewHTTPModule(name string, handlers map[string]func(params map[string]any) (any, error)) *HTTPModule {
	return &HTTPModule{name: name, handlers: handlers}
}

func (m *HTTPModule) Name() string { return m.name }
func (m *HTTPModule) Type() string { return "http-api" }

func (m *HTTPModule) Initialize(_ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

func (m *HTTPModule) ValidateAccess(sess *session.Session) bool {
	return sess != nil && !sess.Rejected
}

func (m *HTTPModule) HealthCheck(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *HTTPModule) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	return nil
}

func (m *HTTPModule) Delegate(_ context.Context, sess *session.Session, action string, params map[string]any, call delegation.CallContext) delegation.Result {
	if !m.ValidateAccess(sess) {
		return delegation.Result{Success: false, Err: fmt.Errorf("http-api: access denied")}
	}
	handler, ok := m.handlers[action]
	if !ok {
		return delegation.Result{Success: false, Err: fmt.Errorf("http-api: unsupported action %q", action)}
	}

	if _, ok := call.Core.TokenExchange(m.name); !ok {
		return delegation.Result{Success: false, Err: fmt.Errorf("http-api: no token-exchange service configured for %q", m.name)}
	}

	data, err := handler(params)
	if err != nil {
		return delegation.Result{Success: false, Err: err}
	}
	return delegation.Result{Success: true, Data: data}
}

// DirectoryModule stands in for a module resolving identities against a
// directory service (e.g. group membership lookups).
type DirectoryModule struct {
	mu      sync.Mutex
	name    string
	ready   bool
	groups  map[string][]string
}

// NewDirectoryModule builds a DirectoryModule over a static user->groups map.
func NewDirectoryModule(name string, groups map[string][]string) *DirectoryModule {
	return &DirectoryModule{name: name, groups: groups}
}

func (m *DirectoryModule) Name() string { return m.name }
func (m *DirectoryModule) Type() string { return "directory" }

func (m *DirectoryModule) Initialize(_ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

func (m *DirectoryModule) ValidateAccess(sess *session.Session) bool {
	return sess != nil
}

func (m *DirectoryModule) HealthCheck(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *DirectoryModule) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	return nil
}

func (m *DirectoryModule) Delegate(_ context.Context, sess *session.Session, action string, params map[string]any, _ delegation.CallContext) delegation.Result {
	if !m.ValidateAccess(sess) {
		return delegation.Result{Success: false, Err: fmt.Errorf("directory: access denied")}
	}
	if action != "lookup-groups" {
		return delegation.Result{Success: false, Err: fmt.Errorf("directory: unsupported action %q", action)}
	}
	user, _ := params["user"].(string)

	m.mu.Lock()
	groups := append([]string(nil), m.groups[user]...)
	m.mu.Unlock()

	return delegation.Result{Success: true, Data: groups}
}
