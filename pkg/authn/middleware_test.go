package authn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-authcore/pkg/audit"
	"github.com/stacklok/toolhive-authcore/pkg/jwtvalidator"
	"github.com/stacklok/toolhive-authcore/pkg/rolemap"
	"github.com/stacklok/toolhive-authcore/pkg/session"
)

const testKeyID = "k1"

func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	key, err := jwk.Import(pub)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, testKeyID))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))

	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		buf, _ := json.Marshal(set)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf)
	}))
}

func buildService(t *testing.T, jwksServer *httptest.Server) *Service {
	t.Helper()
	idp := jwtvalidator.TrustedIDP{
		Name: "idp", Issuer: "https://idp.test", JWKSURI: jwksServer.URL, Audience: []string{"api"},
	}
	dispatcher, err := jwtvalidator.NewDispatcher(context.Background(), []jwtvalidator.TrustedIDP{idp}, jwksServer.Client())
	require.NoError(t, err)

	mapper, err := rolemap.New(rolemap.Config{
		DefaultClaim: "groups",
		Admin:        rolemap.RoleDefinition{Indicators: []rolemap.Indicator{{Value: "admins"}}},
	})
	require.NoError(t, err)

	return NewService(dispatcher, mapper, audit.NewNoop())
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestMiddlewareRejectsMissingAuthHeader(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwksServer := newJWKSServer(t, &key.PublicKey)
	defer jwksServer.Close()

	mw := NewMiddleware(buildService(t, jwksServer), "test-realm", "")
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_request"`)
}

func TestMiddlewareReturns403OnRejectedSession(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwksServer := newJWKSServer(t, &key.PublicKey)
	defer jwksServer.Close()

	mw := NewMiddleware(buildService(t, jwksServer), "test-realm", "")
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached for a rejected session")
	}))

	tok := sign(t, key, jwt.MapClaims{
		"iss": "https://idp.test", "aud": "api", "sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`)
}

func TestMiddlewareAttachesSessionOnSuccess(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwksServer := newJWKSServer(t, &key.PublicKey)
	defer jwksServer.Close()

	mw := NewMiddleware(buildService(t, jwksServer), "test-realm", "")

	var gotSession *session.Session
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		require.True(t, ok)
		gotSession = s
		w.WriteHeader(http.StatusOK)
	}))

	tok := sign(t, key, jwt.MapClaims{
		"iss": "https://idp.test", "aud": "api", "sub": "u1",
		"groups": []any{"admins"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotSession)
	require.Equal(t, session.RoleAdmin, gotSession.PrimaryRole)
}

func TestMiddlewareAcceptsCaseInsensitiveBearerScheme(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwksServer := newJWKSServer(t, &key.PublicKey)
	defer jwksServer.Close()

	mw := NewMiddleware(buildService(t, jwksServer), "test-realm", "")

	tok := sign(t, key, jwt.MapClaims{
		"iss": "https://idp.test", "aud": "api", "sub": "u1",
		"groups": []any{"admins"},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	for _, scheme := range []string{"bearer", "BEARER", "BeArEr"} {
		t.Run(scheme, func(t *testing.T) {
			var reached bool
			handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", scheme+" "+tok)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.True(t, reached, "handler should be reached for scheme %q", scheme)
		})
	}
}
