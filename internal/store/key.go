// Package store provides the durable key-value storage behind the seat
// registry.  Keys are typed composites rendered to stable strings; every
// backend commits the writes of one Update atomically.
package store

import "github.com/iliyamo/seat-registry/internal/model"

// Kind enumerates the key families of the registry.
type Kind uint8

const (
    KindName Kind = iota + 1
    KindSymbol
    KindAdmin
    KindTokenOwner
    KindSeat
)

// Key is a typed composite key.  Seat is set for KindTokenOwner and Owner
// for KindSeat; the other kinds are singletons.
type Key struct {
    Kind  Kind
    Seat  model.SeatNumber
    Owner model.Identity
}

func NameKey() Key   { return Key{Kind: KindName} }
func SymbolKey() Key { return Key{Kind: KindSymbol} }
func AdminKey() Key  { return Key{Kind: KindAdmin} }

// TokenOwnerKey addresses the ownership record of a seat.
func TokenOwnerKey(n model.SeatNumber) Key { return Key{Kind: KindTokenOwner, Seat: n} }

// SeatKey addresses the owner-to-seat back-reference of an identity.
func SeatKey(id model.Identity) Key { return Key{Kind: KindSeat, Owner: id} }

// String renders the key as it is stored, without any instance namespace.
func (k Key) String() string {
    switch k.Kind {
    case KindName:
        return "name"
    case KindSymbol:
        return "symbol"
    case KindAdmin:
        return "admin"
    case KindTokenOwner:
        return "token_owner:" + k.Seat.String()
    case KindSeat:
        return "seat:" + string(k.Owner)
    }
    return "unknown"
}
