package tokenexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stacklok/toolhive-authcore/pkg/logger"
)

// exchangeToken performs the RFC 8693 HTTP round-trip against endpoint.
func exchangeToken(ctx context.Context, endpoint string, req *exchangeRequest, auth clientAuthentication, client *http.Client) (*response, error) {
	data, err := buildTokenExchangeFormData(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := createTokenExchangeRequest(ctx, endpoint, data, auth)
	if err != nil {
		return nil, err
	}

	body, err := executeTokenExchangeRequest(client, httpReq)
	if err != nil {
		return nil, err
	}

	return parseTokenExchangeResponse(body)
}

func buildTokenExchangeFormData(req *exchangeRequest) (url.Values, error) {
	data := url.Values{}

	if req.GrantType == "" {
		req.GrantType = grantTypeTokenExchange
	}
	data.Set("grant_type", req.GrantType)

	if req.SubjectToken == "" {
		return nil, fmt.Errorf("%w: subject_token is required", ErrConfigInvalid)
	}
	data.Set("subject_token", req.SubjectToken)

	if req.SubjectTokenType == "" {
		req.SubjectTokenType = tokenTypeAccessToken
	}
	data.Set("subject_token_type", req.SubjectTokenType)

	if req.RequestedTokenType == "" {
		req.RequestedTokenType = tokenTypeAccessToken
	}
	data.Set("requested_token_type", req.RequestedTokenType)

	addOptionalFields(data, req)
	return data, nil
}

func addOptionalFields(data url.Values, req *exchangeRequest) {
	if req.Audience != "" {
		data.Set("audience", req.Audience)
	}
	if len(req.Scope) > 0 {
		data.Set("scope", spaceJoin(req.Scope))
	}
	if req.Resource != "" {
		data.Set("resource", req.Resource)
	}
	if req.ActingParty != nil && req.ActingParty.ActorToken != "" {
		data.Set("actor_token", req.ActingParty.ActorToken)
		if req.ActingParty.ActorTokenType != "" {
			data.Set("actor_token_type", req.ActingParty.ActorTokenType)
		}
	}
}

// createTokenExchangeRequest sends client credentials via HTTP Basic Auth
// per RFC 6749 §2.3.1.
func createTokenExchangeRequest(ctx context.Context, endpoint string, data url.Values, auth clientAuthentication) (*http.Request, error) {
	encoded := data.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(encoded)))

	if auth.ClientID != "" && auth.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(auth.ClientID), url.QueryEscape(auth.ClientSecret))
	}
	return req, nil
}

func executeTokenExchangeRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrExchangeFailed, err)
	}

	if err := validateResponseStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func validateResponseStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode <= 299 {
		return nil
	}
	if oauthErr := parseOAuthError(statusCode, body); oauthErr != nil {
		logger.Debugf("token exchange OAuth error: %s", oauthErr.String())
		return fmt.Errorf("%w: %s", ErrExchangeFailed, oauthErr.String())
	}
	return fmt.Errorf("%w: status %d", ErrExchangeFailed, statusCode)
}

func parseTokenExchangeResponse(body []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response body", ErrExchangeFailed)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: server returned empty access_token", ErrExchangeFailed)
	}
	if resp.TokenType == "" {
		return nil, fmt.Errorf("%w: server returned empty token_type", ErrExchangeFailed)
	}
	if resp.IssuedTokenType == "" {
		return nil, fmt.Errorf("%w: server returned empty issued_token_type (required by RFC 8693)", ErrExchangeFailed)
	}
	return &resp, nil
}
