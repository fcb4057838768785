package auth

import "errors"

// Sentinel failures shared by the token and policy checks. ParseJWT
// wraps ErrInvalidToken and ErrTokenExpired so callers can tell a bad
// credential from an infrastructure failure with errors.Is.
var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)
