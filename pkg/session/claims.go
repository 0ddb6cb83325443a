// Package session defines the Claims and Session types shared across the
// core, and the context helpers used to carry a derived Session through a
// request's lifetime.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the raw claim bag extracted from a validated JWT. It embeds
// jwt.MapClaims so callers that already know golang-jwt's accessor idioms
// (GetSubject, GetExpirationTime, ...) keep working, while CEL-based role
// mapping and audit extraction can index it as a plain map.
type Claims struct {
	jwt.MapClaims
	Standard StandardClaims
}

// StandardClaims holds the registered JWT claims (RFC 7519 §4.1) pulled out
// once at validation time, so downstream code never re-parses the raw map
// for these.
type StandardClaims struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	NotBefore time.Time
	JTI       string
}

// NewClaims builds a Claims value from parsed jwt.MapClaims, populating
// StandardClaims from the registered claim names.
func NewClaims(raw jwt.MapClaims) Claims {
	c := Claims{MapClaims: raw}

	if v, ok := raw["iss"].(string); ok {
		c.Standard.Issuer = v
	}
	if v, ok := raw["sub"].(string); ok {
		c.Standard.Subject = v
	}
	if v, ok := raw["jti"].(string); ok {
		c.Standard.JTI = v
	}
	c.Standard.Audience = audienceOf(raw["aud"])
	c.Standard.ExpiresAt = timeOf(raw["exp"])
	c.Standard.IssuedAt = timeOf(raw["iat"])
	c.Standard.NotBefore = timeOf(raw["nbf"])

	return c
}

func audienceOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func timeOf(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}
		}
		return time.Unix(int64(f), 0)
	default:
		return time.Time{}
	}
}

// String implements fmt.Stringer, redacting claim values that commonly
// carry secrets so Claims is safe to log directly.
func (c Claims) String() string {
	return fmt.Sprintf("Claims{sub:%q iss:%q aud:%v}", c.Standard.Subject, c.Standard.Issuer, c.Standard.Audience)
}
