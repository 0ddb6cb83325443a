package jwtvalidator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-authcore/pkg/session"
)

// Validator validates compact JWTs issued by a single TrustedIDP. It is
// instantiated once per IDP by the Dispatcher.
type Validator struct {
	idp      TrustedIDP
	resolver *jwksResolver
}

// NewValidator builds a Validator for idp, using httpClient for JWKS
// fetches. idp must already satisfy TrustedIDP.Validate.
func NewValidator(ctx context.Context, idp TrustedIDP, httpClient *http.Client) (*Validator, error) {
	if err := idp.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	resolver, err := newJWKSResolver(ctx, idp.JWKSURI, httpClient)
	if err != nil {
		return nil, err
	}
	return &Validator{idp: idp, resolver: resolver}, nil
}

// Validate parses and fully verifies a compact JWT against this
// validator's IDP: signature via JWKS, issuer, audience, expiry/nbf/iat
// within clock skew, optional max token age, and algorithm allow-list.
func (v *Validator) Validate(ctx context.Context, compact string) (session.Claims, error) {
	allowed := v.idp.allowedAlgorithms()

	parser := jwt.NewParser(
		jwt.WithIssuer(v.idp.Issuer),
		jwt.WithLeeway(v.idp.clockSkew()),
	)

	var raw jwt.MapClaims
	token, err := parser.ParseWithClaims(compact, &raw, func(t *jwt.Token) (any, error) {
		if err := checkAlgorithm(t, allowed); err != nil {
			return nil, err
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: token header missing kid", ErrInvalidToken)
		}
		return v.resolver.lookupKey(ctx, kid)
	})

	if err != nil {
		return session.Claims{}, classifyParseError(err)
	}
	if !token.Valid {
		return session.Claims{}, ErrInvalidSignature
	}

	if err := v.checkAudience(raw); err != nil {
		return session.Claims{}, err
	}
	if err := v.checkMaxAge(raw); err != nil {
		return session.Claims{}, err
	}

	return session.NewClaims(raw), nil
}

func checkAlgorithm(t *jwt.Token, allowed []string) error {
	alg, _ := t.Header["alg"].(string)
	if _, bad := disallowedAlgorithms[alg]; bad {
		return fmt.Errorf("%w: %s", ErrDisallowedAlgorithm, alg)
	}
	if !slices.Contains(allowed, alg) {
		return fmt.Errorf("%w: %s not in allow-list", ErrDisallowedAlgorithm, alg)
	}
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
		return nil
	default:
		return fmt.Errorf("%w: unsupported signing method", ErrDisallowedAlgorithm)
	}
}

func (v *Validator) checkAudience(claims jwt.MapClaims) error {
	got := session.NewClaims(claims).Standard.Audience
	for _, want := range v.idp.Audience {
		if slices.Contains(got, want) {
			return nil
		}
	}
	return fmt.Errorf("%w: token audience %v does not contain any of %v", ErrInvalidAudience, got, v.idp.Audience)
}

func (v *Validator) checkMaxAge(claims jwt.MapClaims) error {
	if v.idp.MaxTokenAge <= 0 {
		return nil
	}
	iat := session.NewClaims(claims).Standard.IssuedAt
	if iat.IsZero() {
		return fmt.Errorf("%w: max_token_age configured but token has no iat", ErrInvalidToken)
	}
	if time.Since(iat) > v.idp.MaxTokenAge {
		return fmt.Errorf("%w: token age exceeds max_token_age", ErrExpired)
	}
	return nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, errKeyNotFound), errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, ErrJWKSUnavailable):
		return ErrJWKSUnavailable
	case errors.Is(err, ErrDisallowedAlgorithm):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrUnknownIssuer
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
