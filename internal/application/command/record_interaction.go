package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD INTERACTION COMMAND
// Appends one fine-grained interaction event to the analytics log while a
// session is open. Fire-and-forget from the front-end's point of view.
// ══════════════════════════════════════════════════════════════════════════════

// RecordInteractionCommand contains one interaction to record.
type RecordInteractionCommand struct {
	// SessionID is the open session the interaction belongs to.
	SessionID string

	// UserID is the caller; must match the session owner.
	UserID string

	// Payload is the opaque serialized interaction data.
	Payload []byte

	// OccurredAt is when the interaction happened (defaults to now if zero).
	OccurredAt time.Time
}

// Validate validates the command.
func (c RecordInteractionCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("command", "RecordInteraction", shared.ErrValidation, "session_id is required")
	}
	if c.UserID == "" {
		return shared.NewDomainError("command", "RecordInteraction", shared.ErrValidation, "user_id is required")
	}
	return nil
}

// RecordInteractionResult contains the result of recording an interaction.
type RecordInteractionResult struct {
	EventID    string
	RecordedAt time.Time
}

// RecordInteractionHandler handles the RecordInteractionCommand.
type RecordInteractionHandler struct {
	sessionRepo session.Repository
	recorder    analytics.Recorder
}

// NewRecordInteractionHandler creates a new RecordInteractionHandler.
func NewRecordInteractionHandler(sessionRepo session.Repository, recorder analytics.Recorder) *RecordInteractionHandler {
	return &RecordInteractionHandler{
		sessionRepo: sessionRepo,
		recorder:    recorder,
	}
}

// Handle executes the record interaction command.
func (h *RecordInteractionHandler) Handle(ctx context.Context, cmd RecordInteractionCommand) (*RecordInteractionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_interaction: validation failed: %w", err)
	}

	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	sess, err := h.sessionRepo.GetByID(ctx, session.ID(cmd.SessionID))
	if err != nil {
		return nil, fmt.Errorf("record_interaction: failed to get session: %w", err)
	}

	if !sess.OwnedBy(shared.UserID(cmd.UserID)) {
		return nil, shared.ErrSessionNotOwned
	}

	if !sess.IsOpen() {
		return nil, shared.ErrSessionTerminal
	}

	// The first recorded interaction moves a started session into the
	// in_progress state. A lost race means another writer transitioned the
	// session already; the interaction is still recorded.
	if sess.Status == session.StatusStarted {
		if err := sess.MarkInProgress(); err != nil {
			return nil, err
		}
		if err := h.sessionRepo.UpdateIf(ctx, sess, session.StatusStarted, false); err != nil &&
			!errors.Is(err, shared.ErrSessionStateChanged) {
			return nil, fmt.Errorf("record_interaction: failed to update session: %w", err)
		}
	}

	event := &analytics.InteractionEvent{
		ID:         uuid.NewString(),
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Kind:       analytics.EventKindInteraction,
		Payload:    cmd.Payload,
		OccurredAt: occurredAt,
	}
	if err := h.recorder.Record(ctx, event); err != nil {
		return nil, fmt.Errorf("record_interaction: failed to record: %w", err)
	}

	return &RecordInteractionResult{
		EventID:    event.ID,
		RecordedAt: occurredAt,
	}, nil
}
