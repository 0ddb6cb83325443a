package authn

import (
	"context"
	"time"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/jwtvalidator"
	"github.com/stacklok/toolhive-authcore/pkg/rolemap"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// Service composes JWTValidator dispatch, role mapping, and session
// creation (C5). It logs one audit entry for each authenticated outcome
// (authenticate_success or auth_rejected); token-validation and
// session-creation errors are returned without an audit entry.
type Service struct {
	dispatcher *jwtvalidator.Dispatcher
	mapper     *rolemap.Mapper
	sessions   *session.Manager
	audit      audit.Service
}

// NewService builds an AuthenticationService. audit may be audit.NewNoop()
// when auditing is disabled.
func NewService(dispatcher *jwtvalidator.Dispatcher, mapper *rolemap.Mapper, auditSvc audit.Service) *Service {
	if auditSvc == nil {
		auditSvc = audit.NewNoop()
	}
	return &Service{
		dispatcher: dispatcher,
		mapper:     mapper,
		sessions:   session.NewManager(),
		audit:      auditSvc,
	}
}

// Authenticate runs the full C2 -> C3 -> C4 pipeline against a compact
// bearer JWT. A non-nil error means token validation itself failed
// (malformed, bad signature, expired, disallowed algorithm, ...) and the
// transport should map it to 401. A nil error with Rejected=true means
// the token was valid but role mapping produced UNASSIGNED_ROLE; the
// transport should map that to 403.
func (s *Service) Authenticate(ctx context.Context, bearerToken string) (session.AuthResult, error) {
	claims, err := s.dispatcher.Validate(ctx, bearerToken)
	if err != nil {
		return session.AuthResult{}, err
	}

	roleResult := s.mapper.Determine(claims.MapClaims)

	sess, err := s.sessions.Create(claims, roleResult)
	if err != nil {
		return session.AuthResult{}, err
	}

	metadata := map[string]any{
		"issuer":   sess.Issuer,
		"audience": claims.Standard.Audience,
		"role":     sess.PrimaryRole,
	}

	if sess.Rejected {
		s.logAudit("auth_rejected", sess.UserID, false, metadata, sess.RejectionReason)
		return session.AuthResult{Session: sess, Rejected: true, RejectionReason: sess.RejectionReason}, nil
	}

	s.logAudit("authenticate_success", sess.UserID, true, metadata, "")
	return session.AuthResult{Session: sess, Rejected: false}, nil
}

func (s *Service) logAudit(action, userID string, success bool, metadata map[string]any, errMsg string) {
	_ = s.audit.Log(audit.Entry{
		Timestamp: time.Now(),
		Source:    "auth:service",
		UserID:    userID,
		Action:    action,
		Success:   success,
		Metadata:  metadata,
		Error:     errMsg,
	})
}
