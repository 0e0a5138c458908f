package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventRequestsChanged signals that the request cache mutated. It
	// carries no payload; observers re-read the store.
	EventRequestsChanged EventType = "requests_changed"

	// EventRequestWriteFailed reports an asynchronous gateway write that
	// did not land. The cache is not rolled back; the next snapshot is
	// authoritative.
	EventRequestWriteFailed EventType = "request_write_failed"
)

// Event is the unit delivered to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// WriteFailedPayload describes a failed gateway write.
type WriteFailedPayload struct {
	Operation string `json:"operation"`
	RequestID string `json:"request_id,omitempty"`
	Reason    string `json:"reason"`
}
