// Package repository persists identity accounts and their refresh tokens.
// The sentinel values below let handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

var (
	// ErrIdentityExists is returned when registering an identity that
	// already has an account.  Handlers translate it into HTTP 409.
	ErrIdentityExists = errors.New("identity already registered")

	// ErrAccountNotFound is returned when no account exists for an identity.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials is returned by Authenticate for an unknown
	// identity or a wrong password, so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefresh is returned for unknown, expired or revoked
	// refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)
