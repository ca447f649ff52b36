package memory

import (
	"context"
	"sync"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/session"
)

// AnalyticsRecorder is an in-memory analytics.Recorder. Events are kept in
// arrival order for inspection by tests.
type AnalyticsRecorder struct {
	mu     sync.RWMutex
	events []*analytics.InteractionEvent
}

// NewAnalyticsRecorder creates an empty in-memory recorder.
func NewAnalyticsRecorder() *AnalyticsRecorder {
	return &AnalyticsRecorder{}
}

// Record appends one event. Duplicate IDs are dropped, matching the
// insert-if-absent behavior of the postgres recorder.
func (r *AnalyticsRecorder) Record(ctx context.Context, event *analytics.InteractionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == event.ID {
			return nil
		}
	}

	cp := *event
	if event.Payload != nil {
		cp.Payload = append([]byte(nil), event.Payload...)
	}
	r.events = append(r.events, &cp)

	return nil
}

// Events returns a snapshot of all recorded events in arrival order.
func (r *AnalyticsRecorder) Events() []*analytics.InteractionEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*analytics.InteractionEvent, len(r.events))
	copy(out, r.events)
	return out
}

// BySession returns events recorded for one session, in arrival order.
func (r *AnalyticsRecorder) BySession(id session.ID) []*analytics.InteractionEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*analytics.InteractionEvent, 0)
	for _, e := range r.events {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

var _ analytics.Recorder = (*AnalyticsRecorder)(nil)
