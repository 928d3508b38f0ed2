package model

import (
    "errors"
    "strings"
    "unicode"
)

// MaxIdentityLen bounds the length of an identity reference.  Account
// addresses used by the registry are well below this limit.
const MaxIdentityLen = 128

// ErrInvalidIdentity is returned by ParseIdentity when the input is empty,
// too long or contains whitespace or control characters.
var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is an external principal reference (an account address or
// handle).  It is used both as a seat owner and as the subject of an
// authorization proof.  Identities are compared byte-for-byte.
type Identity string

// ParseIdentity trims surrounding whitespace and validates the result.
func ParseIdentity(s string) (Identity, error) {
    id := Identity(strings.TrimSpace(s))
    if err := id.Validate(); err != nil {
        return "", err
    }
    return id, nil
}

// Validate reports whether the identity is usable as a storage key and a
// token subject.
func (id Identity) Validate() error {
    if id == "" || len(id) > MaxIdentityLen {
        return ErrInvalidIdentity
    }
    for _, r := range string(id) {
        if unicode.IsSpace(r) || !unicode.IsPrint(r) {
            return ErrInvalidIdentity
        }
    }
    return nil
}

func (id Identity) String() string { return string(id) }
