package auth

import "errors"

// Error taxonomy for the authentication pipeline. Each maps to a distinct
// HTTP outcome: the first four to 401, ErrInvalidCredentials to 401 on the
// login endpoint. ErrTokenExpired is separate from ErrInvalidToken so
// clients can run the refresh flow instead of a hard logout.
var (
	ErrUnauthenticated    = errors.New("auth: missing credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
