package postgres

import (
	"context"
	"fmt"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS RECORDER IMPLEMENTATION
// Append-only; nothing in the engine reads this table back.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsRecorder implements analytics.Recorder for PostgreSQL.
type AnalyticsRecorder struct {
	conn *Connection
}

// NewAnalyticsRecorder creates a new AnalyticsRecorder.
func NewAnalyticsRecorder(conn *Connection) *AnalyticsRecorder {
	return &AnalyticsRecorder{conn: conn}
}

// Record appends one interaction event.
func (r *AnalyticsRecorder) Record(ctx context.Context, event *analytics.InteractionEvent) error {
	query := `
		INSERT INTO interaction_events (id, session_id, user_id, kind, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		event.ID,
		string(event.SessionID),
		string(event.UserID),
		string(event.Kind),
		event.Payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record interaction event: %w", err)
	}
	return nil
}
