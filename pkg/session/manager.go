package session

import (
	"fmt"
	"time"
)

// ErrInvariantViolated marks a programmer error: Create was asked to build
// a Session that would violate the rejection or empty-permissions
// invariant without actually rejecting it.
type ErrInvariantViolated struct {
	reason string
}

func (e *ErrInvariantViolated) Error() string {
	return fmt.Sprintf("session: invariant violated: %s", e.reason)
}

// Manager builds, validates, and migrates Session values. It is the only
// component permitted to construct a Session.
type Manager struct{}

// NewManager returns a SessionManager. It carries no state: all behavior
// is pure functions of its arguments.
func NewManager() *Manager { return &Manager{} }

// Create builds a Session from validated claims and a role-mapping
// result, enforcing the rejection invariant (UNASSIGNED_ROLE implies
// rejected) and the empty-permissions invariant (UNASSIGNED_ROLE implies
// no permissions or scopes). Violating either without the session being
// marked rejected is a programmer error, not a user-facing one.
func (*Manager) Create(claims Claims, role RoleMapResult) (*Session, error) {
	rejected := role.PrimaryRole == UnassignedRole

	if rejected && (len(role.Permissions) > 0 || len(role.Scopes) > 0) {
		return nil, &ErrInvariantViolated{reason: "unassigned role carries non-empty permissions or scopes"}
	}

	reason := role.FailureReason
	if rejected && reason == "" {
		reason = "role mapping produced no assignable role"
	}

	s := &Session{
		Version:         CurrentVersion,
		UserID:          claims.Standard.Subject,
		Issuer:          claims.Standard.Issuer,
		PrimaryRole:     role.PrimaryRole,
		CustomRoles:     role.CustomRoles,
		Permissions:     role.Permissions,
		Scopes:          role.Scopes,
		Claims:          claims,
		Rejected:        rejected,
		RejectionReason: reason,
		CreatedAt:       time.Now(),
		ExpiresAt:       claims.Standard.ExpiresAt,
	}

	if err := validateInvariants(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate re-checks the rejection and empty-permissions invariants on a
// Session obtained from untrusted code (e.g. deserialized or passed
// across a module boundary). It is used defensively at component
// boundaries that accept a *Session they did not themselves construct.
func (*Manager) Validate(s *Session) error {
	return validateInvariants(s)
}

func validateInvariants(s *Session) error {
	if s == nil {
		return &ErrInvariantViolated{reason: "nil session"}
	}
	if s.PrimaryRole == UnassignedRole {
		if !s.Rejected {
			return &ErrInvariantViolated{reason: "unassigned role but rejected=false"}
		}
		if len(s.Permissions) > 0 || len(s.Scopes) > 0 {
			return &ErrInvariantViolated{reason: "unassigned role carries non-empty permissions or scopes"}
		}
	}
	return nil
}

// legacySession is the pre-v1 record shape: no Version, no Rejected.
type legacySession struct {
	UserID      string
	PrimaryRole string
	Permissions map[string]struct{}
	Scopes      map[string]struct{}
	Claims      Claims
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Migrate upgrades a record to the current Session version. v1 inputs are
// returned unchanged (Migrate is a fixed point for current records);
// legacy (v0) records have Rejected computed from PrimaryRole and Issuer
// defaulted to "unknown" when absent from claims.
func (m *Manager) Migrate(v any) (*Session, error) {
	switch rec := v.(type) {
	case *Session:
		if rec.Version == CurrentVersion {
			return rec, nil
		}
		return m.migrateFromCurrentShape(rec)
	case legacySession:
		return m.migrateLegacy(rec)
	default:
		return nil, &ErrInvariantViolated{reason: "migrate: unrecognized session record type"}
	}
}

func (*Manager) migrateFromCurrentShape(s *Session) (*Session, error) {
	migrated := *s
	migrated.Version = CurrentVersion
	if migrated.Issuer == "" {
		migrated.Issuer = "unknown"
	}
	migrated.Rejected = migrated.PrimaryRole == UnassignedRole
	return &migrated, nil
}

func (*Manager) migrateLegacy(rec legacySession) (*Session, error) {
	issuer := rec.Claims.Standard.Issuer
	if issuer == "" {
		issuer = "unknown"
	}

	return &Session{
		Version:     CurrentVersion,
		UserID:      rec.UserID,
		Issuer:      issuer,
		PrimaryRole: rec.PrimaryRole,
		Permissions: rec.Permissions,
		Scopes:      rec.Scopes,
		Claims:      rec.Claims,
		Rejected:    rec.PrimaryRole == UnassignedRole,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}
