// Package analytics contains the write-only interaction event log.
// Events are appended by the session lifecycle and read by reporting
// systems outside this engine; nothing in the core consumes them.
package analytics

import (
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// EventKind classifies an interaction event.
type EventKind string

const (
	EventKindSessionOpened    EventKind = "session_opened"
	EventKindSessionCompleted EventKind = "session_completed"
	EventKindSessionAbandoned EventKind = "session_abandoned"
	EventKindInteraction      EventKind = "interaction"
)

// InteractionEvent is one fine-grained interaction record.
// Payload is an opaque serialized blob the engine never interprets.
type InteractionEvent struct {
	ID         string
	SessionID  session.ID
	UserID     shared.UserID
	Kind       EventKind
	Payload    []byte
	OccurredAt time.Time
}
