package registry

import (
    "errors"

    "github.com/iliyamo/seat-registry/internal/model"
)

// Each failure of a registry call is reported as one of these sentinel
// values (possibly wrapped), so callers can branch with errors.Is.  A call
// that returns any of them has written nothing.
var (
    ErrAlreadyInitialized     = errors.New("registry already initialized")
    ErrNotInitialized         = errors.New("registry not initialized")
    ErrSeatAlreadyOwned       = errors.New("seat already owned")
    ErrSeatNotFound           = errors.New("seat not found")
    ErrUnauthorized           = errors.New("unauthorized")
    ErrTokenNotFound          = errors.New("token does not exist")
    ErrNotOwner               = errors.New("only the current owner can transfer the seat")
    ErrReceiverAlreadyHasSeat = errors.New("receiver already has a seat")

    ErrInvalidIdentity = model.ErrInvalidIdentity
    ErrInvalidSymbol   = model.ErrInvalidSymbol
    ErrInvalidName     = model.ErrInvalidName
)
