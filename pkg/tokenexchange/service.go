package tokenexchange

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// ActingParty identifies a delegation-chain actor token, carried through
// to the RFC 8693 actor_token / actor_token_type form fields.
type ActingParty struct {
	ActorToken     string
	ActorTokenType string
}

// ExchangeRequest describes a single token exchange call.
type ExchangeRequest struct {
	// SubjectToken is the incoming bearer token being exchanged. Required.
	SubjectToken string
	// Audience and Scope override the Config defaults when non-empty.
	Audience string
	Scope    []string
	// SessionID, when set, keys the read-through cache and is carried
	// into audit metadata. It is never sent to the IDP.
	SessionID string
	// ActingParty, when set, requests a delegation-chain exchange.
	ActingParty *ActingParty
}

// ExchangeResult is the outcome of a successful exchange.
type ExchangeResult struct {
	AccessToken     string
	TokenType       string
	IssuedTokenType string
	// DecodedClaims holds the best-effort, unverified decoding of
	// AccessToken when it is itself a JWT. The exchanged token was
	// issued by the same IDP this resource server trusts, but it is not
	// re-validated here; callers that need verified claims should run it
	// back through a Dispatcher.
	DecodedClaims session.Claims
	ExpiresAt     time.Time
}

// Cache is the read-through cache contract a Service consults before
// performing an IDP round-trip. Satisfied structurally by the encrypted
// token cache (C7); this package never imports it directly, keeping the
// dependency one-way. Get and Put both take subjectToken: the cache binds
// every entry to it as AEAD associated data, so presenting a different
// token than the one that produced sessionID always misses.
type Cache interface {
	Activate(subjectToken string) (sessionID string)
	Get(ctx context.Context, sessionID, audience, subjectToken string) (ExchangeResult, bool)
	Put(ctx context.Context, sessionID, audience, subjectToken string, result ExchangeResult) error
}

// Service performs RFC 8693 token exchanges against a single IDP,
// optionally read-through caching the results.
type Service struct {
	cfg   Config
	cache Cache
	audit audit.Service
}

// New validates cfg and builds a Service. cache may be nil to disable
// read-through caching; auditSvc may be nil to disable auditing.
func New(cfg Config, cache Cache, auditSvc audit.Service) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if auditSvc == nil {
		auditSvc = audit.NewNoop()
	}
	return &Service{cfg: cfg, cache: cache, audit: auditSvc}, nil
}

// Exchange performs a read-through token exchange: a bound cache is
// consulted first; on miss the IDP round-trip runs and, on success, the
// result is written back to the cache.
func (s *Service) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	audience := req.Audience
	if audience == "" {
		audience = s.cfg.DefaultAudience
	}
	scope := req.Scope
	if len(scope) == 0 {
		scope = s.cfg.DefaultScope
	}

	sessionID := req.SessionID
	if s.cache != nil && sessionID == "" {
		sessionID = s.cache.Activate(req.SubjectToken)
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, sessionID, audience, req.SubjectToken); ok {
			s.logAudit(sessionID, audience, true, "")
			return cached, nil
		}
	}

	wireReq := &exchangeRequest{
		GrantType:          grantTypeTokenExchange,
		SubjectToken:       req.SubjectToken,
		SubjectTokenType:   tokenTypeAccessToken,
		RequestedTokenType: tokenTypeAccessToken,
		Audience:           audience,
		Scope:              scope,
	}
	if req.ActingParty != nil {
		wireReq.ActingParty = &actingParty{
			ActorToken:     req.ActingParty.ActorToken,
			ActorTokenType: req.ActingParty.ActorTokenType,
		}
	}

	clientAuth := clientAuthentication{ClientID: s.cfg.ClientID, ClientSecret: s.cfg.ClientSecret}

	resp, err := exchangeToken(ctx, s.cfg.TokenEndpoint, wireReq, clientAuth, s.cfg.httpClient())
	if err != nil {
		s.logAudit(sessionID, audience, false, err.Error())
		return ExchangeResult{}, err
	}

	result := ExchangeResult{
		AccessToken:     resp.AccessToken,
		TokenType:       resp.TokenType,
		IssuedTokenType: resp.IssuedTokenType,
		DecodedClaims:   decodeUnverified(resp.AccessToken),
	}
	if resp.ExpiresIn > 0 {
		result.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if s.cache != nil {
		if putErr := s.cache.Put(ctx, sessionID, audience, req.SubjectToken, result); putErr != nil {
			_ = s.audit.Log(audit.Entry{
				Timestamp: time.Now(),
				Source:    "auth:token-exchange",
				Action:    "cache_put_failed",
				Success:   false,
				Metadata:  map[string]any{"session_id": sessionID, "audience": audience},
				Error:     putErr.Error(),
			})
		}
	}

	s.logAudit(sessionID, audience, true, "")
	return result, nil
}

func (s *Service) logAudit(sessionID, audience string, success bool, errMsg string) {
	_ = s.audit.Log(audit.Entry{
		Timestamp: time.Now(),
		Source:    "auth:token-exchange",
		Action:    "token_exchange",
		Success:   success,
		Metadata:  map[string]any{"session_id": sessionID, "audience": audience},
		Error:     errMsg,
	})
}

// decodeUnverified best-effort decodes an exchanged access token's claims
// when it happens to be a JWT. Parsing failures are silent: an opaque
// access token is a legitimate RFC 8693 result, not an error.
func decodeUnverified(accessToken string) session.Claims {
	var raw jwt.MapClaims
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, &raw)
	if err != nil {
		return session.NewClaims(jwt.MapClaims{})
	}
	return session.NewClaims(raw)
}
