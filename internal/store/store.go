// ABOUTME: Store interface and data types for the session journal
// ABOUTME: Defines Session and Event records and the filters used to list them

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// EventKind classifies journal events.
type EventKind string

const (
	EventRenamed  EventKind = "renamed"  // Text holds the new name
	EventOutbound EventKind = "outbound" // Operator text sent to the agent
	EventInbound  EventKind = "inbound"  // Text received from the agent
	EventPing     EventKind = "ping"
	EventPong     EventKind = "pong"
	EventRekey    EventKind = "rekey" // Repeated handshake; Text holds the new fingerprint
)

// ValidEventKinds lists all valid event kinds.
var ValidEventKinds = []EventKind{
	EventRenamed,
	EventOutbound,
	EventInbound,
	EventPing,
	EventPong,
	EventRekey,
}

// Session records one agent connection.
type Session struct {
	ID             string // agent SessionID
	Name           string // latest known name
	RemoteAddr     string
	Fingerprint    string
	KeyBits        int
	ConnectedAt    time.Time
	DisconnectedAt *time.Time // nil while connected
}

// Event is a single journal entry.
type Event struct {
	ID        string // UUID v4
	SessionID string
	AgentName string // name at the time of the event
	Kind      EventKind
	Text      string
	Timestamp time.Time
}

// EventFilter specifies filtering options for listing events.
type EventFilter struct {
	SessionID *string
	Kind      *EventKind
	Limit     int // max results (default 100, max 1000)
}

// Store is the session journal.
type Store interface {
	// OpenSession records a newly registered agent.
	OpenSession(ctx context.Context, s *Session) error

	// CloseSession stamps the disconnect time. Returns ErrNotFound for an unknown ID.
	CloseSession(ctx context.Context, id string, at time.Time) error

	// RenameSession updates the latest known name.
	RenameSession(ctx context.Context, id, name string) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// AppendEvent appends an event. ID and Timestamp are generated if unset.
	AppendEvent(ctx context.Context, e *Event) error

	// ListEvents returns matching events newest first.
	ListEvents(ctx context.Context, f EventFilter) ([]*Event, error)

	// Close releases the underlying resources.
	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
