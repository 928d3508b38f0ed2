// Package auth carries the authorization proof of a call.  Transport code
// verifies a credential (an access token) and attaches the proven identity
// to the request context; the registry later asks ContextAuthorizer whether
// that proof covers the identity it is about to act for.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-registry/internal/model"
)

var (
	// ErrNoProof means the context carries no verified identity.
	ErrNoProof = errors.New("no authorization proof")
	// ErrIdentityMismatch means the verified identity is not the one required.
	ErrIdentityMismatch = errors.New("authorization proof is for a different identity")
)

type identityKey struct{}

// WithIdentity returns a context carrying id as the verified caller.  Only
// code that has checked a credential for id may call it.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the verified caller, if any.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(model.Identity)
	return id, ok && id != ""
}

// ContextAuthorizer authorizes a call to act as exactly the identity
// attached by WithIdentity.
type ContextAuthorizer struct{}

func (ContextAuthorizer) RequireAuth(ctx context.Context, id model.Identity) error {
	caller, ok := IdentityFrom(ctx)
	if !ok {
		return ErrNoProof
	}
	if caller != id {
		return fmt.Errorf("%w: have %q, need %q", ErrIdentityMismatch, caller, id)
	}
	return nil
}
