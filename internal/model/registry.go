package model

import (
    "errors"
    "strconv"
    "unicode/utf8"
)

// MaxSymbolLen is the longest symbol accepted at initialization.
const MaxSymbolLen = 32

// MaxNameLen is the longest name, in bytes, accepted at initialization.
// Stored values must fit registry_kv.v (VARCHAR(255)) unchanged.
const MaxNameLen = 128

// ErrInvalidName is returned when a name is longer than MaxNameLen or is
// not valid UTF-8.
var ErrInvalidName = errors.New("invalid name")

// ErrInvalidSymbol is returned when a symbol is empty, longer than
// MaxSymbolLen or contains characters outside [A-Za-z0-9_].
var ErrInvalidSymbol = errors.New("invalid symbol")

// Metadata is the registry singleton written once by Initialize.
//
// Fields:
//  Name   – display name of the registry (e.g. "Hall").
//  Symbol – short identifier (e.g. "HALL").
//  Admin  – identity allowed to mint when minting is admin-gated.
type Metadata struct {
    Name   string   `json:"name"`
    Symbol string   `json:"symbol"`
    Admin  Identity `json:"admin"`
}

// SeatNumber identifies a seat.  Seat numbers are never reused.
type SeatNumber uint32

// ParseSeatNumber parses a decimal seat number as found in URL paths and in
// the back-reference values of the store.
func ParseSeatNumber(s string) (SeatNumber, error) {
    n, err := strconv.ParseUint(s, 10, 32)
    if err != nil {
        return 0, err
    }
    return SeatNumber(n), nil
}

func (n SeatNumber) String() string { return strconv.FormatUint(uint64(n), 10) }

// ValidateName checks the name length and encoding.  An empty name is
// allowed.
func ValidateName(s string) error {
    if len(s) > MaxNameLen || !utf8.ValidString(s) {
        return ErrInvalidName
    }
    return nil
}

// ValidateSymbol checks the symbol charset and length.
func ValidateSymbol(s string) error {
    if s == "" || len(s) > MaxSymbolLen {
        return ErrInvalidSymbol
    }
    for _, r := range s {
        switch {
        case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
        default:
            return ErrInvalidSymbol
        }
    }
    return nil
}
