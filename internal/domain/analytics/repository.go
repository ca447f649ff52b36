package analytics

import "context"

// Recorder defines the append-only sink for interaction events.
// Recording failures must never block the session lifecycle; callers log
// and continue.
type Recorder interface {
	// Record appends one event.
	Record(ctx context.Context, event *InteractionEvent) error
}
