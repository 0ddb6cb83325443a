// Package tokenexchange implements C6: RFC 8693 token exchange against an
// IDP, with an optional read-through cache for the resulting delegation
// tokens.
package tokenexchange

import "errors"

var (
	// ErrConfigInvalid marks a TOKEN_EXCHANGE_CONFIG_INVALID failure:
	// missing endpoint, missing client credentials, or a plain-HTTP
	// endpoint (HTTPS is mandatory).
	ErrConfigInvalid = errors.New("tokenexchange: configuration invalid")
	// ErrExchangeFailed marks a TOKEN_EXCHANGE_FAILED failure: the IDP
	// rejected the exchange or returned a malformed response.
	ErrExchangeFailed = errors.New("tokenexchange: exchange failed")
	// ErrExchangeTimeout marks a TOKEN_EXCHANGE_TIMEOUT failure.
	ErrExchangeTimeout = errors.New("tokenexchange: exchange timed out")
)
