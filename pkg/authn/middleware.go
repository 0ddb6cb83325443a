package authn

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/stacklok/toolhive-authcore/pkg/session"
)

const bearerScheme = "Bearer "

// ExtractBearerToken extracts and validates a Bearer token from the
// Authorization header. The scheme token is compared case-insensitively
// (RFC 6750 §2.1 treats "Bearer" as a case-insensitive auth-scheme name),
// so "bearer", "BEARER", and "Bearer" are all accepted.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrAuthHeaderMissing
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidAuthHeaderFormat
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrEmptyBearerToken
	}
	return token, nil
}

// EscapeQuotes escapes backslashes and double quotes for embedding a
// value inside a quoted-string header parameter.
func EscapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Middleware is the thin C10 AuthMiddleware: it extracts the bearer
// token, calls the AuthenticationService, and either attaches the
// resulting Session to the request context or rejects the request with
// an RFC 6750 / RFC 9728 WWW-Authenticate challenge. It never mutates
// the session it receives.
type Middleware struct {
	authn       *Service
	realm       string
	resourceURL string
}

// NewMiddleware builds a Middleware backed by svc. realm is used as the
// WWW-Authenticate realm (typically the resource server's issuer or base
// URL); resourceURL, if set, is advertised via RFC 9728's
// resource_metadata parameter.
func NewMiddleware(svc *Service, realm, resourceURL string) *Middleware {
	return &Middleware{authn: svc, realm: realm, resourceURL: resourceURL}
}

// Wrap returns an http.Handler that authenticates every request before
// delegating to next. Rejected and invalid requests never reach next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractBearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", m.challenge("invalid_request", ""))
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		result, err := m.authn.Authenticate(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", m.challenge("invalid_token", sanitize(err.Error())))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		if result.Rejected {
			w.Header().Set("WWW-Authenticate", m.challenge("insufficient_scope", sanitize(result.RejectionReason)))
			http.Error(w, "insufficient scope", http.StatusForbidden)
			return
		}

		ctx := session.WithSession(r.Context(), result.Session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) challenge(oauthError, description string) string {
	var parts []string
	if m.realm != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, EscapeQuotes(m.realm)))
	}
	if m.resourceURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, EscapeQuotes(m.resourceURL)))
	}
	parts = append(parts, fmt.Sprintf(`error="%s"`, oauthError))
	if description != "" {
		parts = append(parts, fmt.Sprintf(`error_description="%s"`, EscapeQuotes(description)))
	}
	return bearerScheme + strings.Join(parts, ", ")
}

const maxErrDescriptionBytes = 200

// sanitize strips control characters and truncates to 200 bytes before an
// error description is echoed back in a WWW-Authenticate header.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxErrDescriptionBytes {
		out = out[:maxErrDescriptionBytes]
	}
	return out
}
