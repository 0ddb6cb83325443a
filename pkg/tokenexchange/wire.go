package tokenexchange

import (
	"encoding/json"
	"fmt"
	"strings"
)

// actingParty carries the actor token for a delegation-chain exchange
// (RFC 8693 §2.1), identifying a party acting on behalf of the subject.
type actingParty struct {
	ActorToken     string
	ActorTokenType string
}

// exchangeRequest is the wire shape of an RFC 8693 token exchange request.
type exchangeRequest struct {
	GrantType          string
	SubjectToken       string
	SubjectTokenType   string
	RequestedTokenType string

	Resource    string
	Audience    string
	Scope       []string
	ActingParty *actingParty
}

// String redacts the subject and actor tokens.
func (r exchangeRequest) String() string {
	subjectToken := redactedPlaceholder
	if r.SubjectToken == "" {
		subjectToken = emptyPlaceholder
	}
	actorToken := "<none>"
	if r.ActingParty != nil {
		actorToken = redactedPlaceholder
		if r.ActingParty.ActorToken == "" {
			actorToken = emptyPlaceholder
		}
	}
	return fmt.Sprintf("exchangeRequest{GrantType: %s, Audience: %s, Scope: %v, SubjectToken: %s, ActorToken: %s}",
		r.GrantType, r.Audience, r.Scope, subjectToken, actorToken)
}

// response is the wire shape of an RFC 8693 token exchange response.
type response struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	Scope           string `json:"scope"`
	RefreshToken    string `json:"refresh_token"`
}

// String redacts the access and refresh tokens.
func (r response) String() string {
	accessToken := redactedPlaceholder
	if r.AccessToken == "" {
		accessToken = emptyPlaceholder
	}
	refreshToken := redactedPlaceholder
	if r.RefreshToken == "" {
		refreshToken = emptyPlaceholder
	}
	return fmt.Sprintf("response{AccessToken: %s, TokenType: %s, ExpiresIn: %d, RefreshToken: %s}",
		accessToken, r.TokenType, r.ExpiresIn, refreshToken)
}

// clientAuthentication carries the OAuth client credentials sent via
// HTTP Basic Auth.
type clientAuthentication struct {
	ClientID     string
	ClientSecret string
}

// String redacts the client secret.
func (c clientAuthentication) String() string {
	clientSecret := redactedPlaceholder
	if c.ClientSecret == "" {
		clientSecret = emptyPlaceholder
	}
	return fmt.Sprintf("clientAuthentication{ClientID: %s, ClientSecret: %s}", c.ClientID, clientSecret)
}

// oAuthError is an RFC 6749 §5.2 error response.
type oAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
	StatusCode       int    `json:"-"`
}

func (e *oAuthError) String() string {
	if e.ErrorURI != "" {
		return fmt.Sprintf("OAuth error %q (status %d): see %s", e.Error, e.StatusCode, e.ErrorURI)
	}
	return fmt.Sprintf("OAuth error %q (status %d)", e.Error, e.StatusCode)
}

func parseOAuthError(statusCode int, body []byte) *oAuthError {
	var oauthErr oAuthError
	if err := json.Unmarshal(body, &oauthErr); err != nil {
		return nil
	}
	if oauthErr.Error == "" {
		return nil
	}
	oauthErr.StatusCode = statusCode
	return &oauthErr
}

func spaceJoin(scope []string) string {
	return strings.Join(scope, " ")
}
