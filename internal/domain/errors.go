package domain

import "errors"

var (
	ErrInvalidCriteria        = errors.New("invalid search criteria")
	ErrAuthenticationRequired = errors.New("authentication required")

	// marketplace
	ErrAuthRejected        = errors.New("marketplace rejected the access token")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
	ErrUpstreamRejected    = errors.New("upstream rejected the request")
	ErrInvalidOTP          = errors.New("invalid one-time password")
	ErrRefreshRejected     = errors.New("refresh token rejected")

	// routing provider
	ErrRateLimited = errors.New("routing quota exhausted")
	ErrNoRoute     = errors.New("no route found")
)
