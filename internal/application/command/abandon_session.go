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
// ABANDON SESSION COMMAND
// Cancels an open session. Abandoned sessions are terminal and never touch
// the progress summary: no counters, no XP, no streak.
// ══════════════════════════════════════════════════════════════════════════════

// AbandonSessionCommand contains the data to abandon a session.
type AbandonSessionCommand struct {
	// SessionID identifies the session to abandon.
	SessionID string

	// UserID is the caller; must match the session owner.
	UserID string

	// AbandonedAt is when the session was abandoned (defaults to now if zero).
	AbandonedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AbandonSessionCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("command", "AbandonSession", shared.ErrValidation, "session_id is required")
	}
	if c.UserID == "" {
		return shared.NewDomainError("command", "AbandonSession", shared.ErrValidation, "user_id is required")
	}
	return nil
}

// AbandonSessionResult contains the result of abandoning a session.
type AbandonSessionResult struct {
	SessionID string
	Status    session.Status
	Events    []shared.Event
}

// AbandonSessionHandler handles the AbandonSessionCommand.
type AbandonSessionHandler struct {
	sessionRepo    session.Repository
	recorder       analytics.Recorder
	eventPublisher shared.EventPublisher
}

// NewAbandonSessionHandler creates a new AbandonSessionHandler.
func NewAbandonSessionHandler(
	sessionRepo session.Repository,
	recorder analytics.Recorder,
	eventPublisher shared.EventPublisher,
) *AbandonSessionHandler {
	return &AbandonSessionHandler{
		sessionRepo:    sessionRepo,
		recorder:       recorder,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the abandon session command.
func (h *AbandonSessionHandler) Handle(ctx context.Context, cmd AbandonSessionCommand) (*AbandonSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("abandon_session: validation failed: %w", err)
	}

	abandonedAt := cmd.AbandonedAt
	if abandonedAt.IsZero() {
		abandonedAt = time.Now().UTC()
	}

	sess, err := h.sessionRepo.GetByID(ctx, session.ID(cmd.SessionID))
	if err != nil {
		return nil, fmt.Errorf("abandon_session: failed to get session: %w", err)
	}

	if !sess.OwnedBy(shared.UserID(cmd.UserID)) {
		return nil, shared.ErrSessionNotOwned
	}

	prev := sess.Status
	if err := sess.Abandon(abandonedAt); err != nil {
		return nil, err
	}

	// Compare-and-swap so a racing completion cannot be overwritten;
	// the only concurrent writers move the session to a terminal state.
	if err := h.sessionRepo.UpdateIf(ctx, sess, prev, false); err != nil {
		if errors.Is(err, shared.ErrSessionStateChanged) {
			return nil, shared.ErrSessionTerminal
		}
		return nil, fmt.Errorf("abandon_session: failed to update session: %w", err)
	}

	result := &AbandonSessionResult{
		SessionID: cmd.SessionID,
		Status:    sess.Status,
		Events:    make([]shared.Event, 0, 1),
	}

	event := shared.NewSessionAbandonedEvent(string(sess.ID), string(sess.AppID), string(sess.UserID))
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	if h.recorder != nil {
		_ = h.recorder.Record(ctx, &analytics.InteractionEvent{
			ID:         uuid.NewString(),
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			Kind:       analytics.EventKindSessionAbandoned,
			OccurredAt: abandonedAt,
		})
	}

	if h.eventPublisher != nil {
		for _, event := range result.Events {
			_ = h.eventPublisher.Publish(event)
		}
	}

	return result, nil
}
