package registry

import (
    "context"
    "time"

    "github.com/iliyamo/seat-registry/internal/model"
)

// EventType names a committed registry change.
type EventType string

const (
    EventInitialized     EventType = "registry.initialized"
    EventSeatMinted      EventType = "seat.minted"
    EventSeatTransferred EventType = "seat.transferred"
)

// Event describes one committed change.  From is empty for mints; Seat is
// zero and Metadata is set for initialization.
type Event struct {
    Type       EventType
    Registry   string
    Seat       model.SeatNumber
    From       model.Identity
    To         model.Identity
    Metadata   *model.Metadata
    OccurredAt time.Time
}

// EventSink receives events after their change has been committed.  A
// failing sink never fails the registry call.
type EventSink interface {
    Publish(ctx context.Context, ev Event) error
}
