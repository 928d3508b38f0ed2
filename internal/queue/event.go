// Package queue defines message payloads exchanged over the message broker.
package queue

// SeatEventsQueue is the durable queue that carries SeatEvent messages.
const SeatEventsQueue = "seat.events"

// SeatEvent is published after a registry change has been committed.  It
// carries enough information for downstream consumers to log or index seat
// ownership without reading the registry store.  Name, Symbol and Admin are
// set only for "registry.initialized"; From is empty for "seat.minted".
type SeatEvent struct {
    Type       string `json:"type"`
    Registry   string `json:"registry"`
    SeatNumber uint32 `json:"seat_number"`
    From       string `json:"from,omitempty"`
    To         string `json:"to,omitempty"`
    Name       string `json:"name,omitempty"`
    Symbol     string `json:"symbol,omitempty"`
    Admin      string `json:"admin,omitempty"`
    OccurredAt string `json:"occurred_at"`
}
