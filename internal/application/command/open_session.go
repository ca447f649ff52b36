// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPEN SESSION COMMAND
// Starts a new practice session against an active catalog app and makes sure a
// progress summary exists for the (app, user) pair.
// ══════════════════════════════════════════════════════════════════════════════

// OpenSessionCommand contains the data to open a session.
type OpenSessionCommand struct {
	// AppID identifies the catalog app to practice.
	AppID string

	// UserID is the user opening the session.
	UserID string

	// Kind is the session kind (defaults to "play").
	Kind string

	// StartedAt is when the session started (defaults to now if zero).
	StartedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c OpenSessionCommand) Validate() error {
	if c.AppID == "" {
		return shared.NewDomainError("command", "OpenSession", shared.ErrValidation, "app_id is required")
	}
	if c.UserID == "" {
		return shared.NewDomainError("command", "OpenSession", shared.ErrValidation, "user_id is required")
	}
	if c.Kind != "" && !session.Kind(c.Kind).IsValid() {
		return shared.NewDomainError("command", "OpenSession", shared.ErrValidation, "unknown session kind: "+c.Kind)
	}
	return nil
}

// OpenSessionResult contains the result of opening a session.
type OpenSessionResult struct {
	// SessionID is the ID of the new session.
	SessionID string `json:"session_id"`

	// AppID is the app the session belongs to.
	AppID string `json:"app_id"`

	// UserID is the session owner.
	UserID string `json:"user_id"`

	// Status is the session status after opening.
	Status session.Status `json:"status"`

	// StartedAt is the recorded start time.
	StartedAt time.Time `json:"started_at"`

	// Events contains domain events generated.
	Events []shared.Event `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// OpenSessionHandler handles the OpenSessionCommand.
type OpenSessionHandler struct {
	catalogRepo    catalog.Repository
	sessionRepo    session.Repository
	progressRepo   progress.Repository
	recorder       analytics.Recorder
	eventPublisher shared.EventPublisher
}

// NewOpenSessionHandler creates a new OpenSessionHandler.
func NewOpenSessionHandler(
	catalogRepo catalog.Repository,
	sessionRepo session.Repository,
	progressRepo progress.Repository,
	recorder analytics.Recorder,
	eventPublisher shared.EventPublisher,
) *OpenSessionHandler {
	return &OpenSessionHandler{
		catalogRepo:    catalogRepo,
		sessionRepo:    sessionRepo,
		progressRepo:   progressRepo,
		recorder:       recorder,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the open session command.
func (h *OpenSessionHandler) Handle(ctx context.Context, cmd OpenSessionCommand) (*OpenSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("open_session: validation failed: %w", err)
	}

	startedAt := cmd.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	// The app must exist and be active before a session can open against it.
	app, err := h.catalogRepo.GetByID(ctx, catalog.AppID(cmd.AppID))
	if err != nil {
		return nil, fmt.Errorf("open_session: failed to get app: %w", err)
	}
	if !app.Active {
		return nil, shared.ErrAppInactive
	}

	kind := session.Kind(cmd.Kind)
	if kind == "" {
		kind = session.KindPlay
	}

	sess, err := session.New(
		session.ID(uuid.NewString()),
		app.ID,
		shared.UserID(cmd.UserID),
		kind,
		app.MaxScore,
		startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("open_session: failed to create session: %w", err)
	}

	if err := h.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("open_session: failed to save session: %w", err)
	}

	// Seed the progress summary so later reads never miss.
	key := progress.Key{AppID: app.ID, UserID: sess.UserID}
	if err := h.progressRepo.Ensure(ctx, key); err != nil {
		return nil, fmt.Errorf("open_session: failed to ensure progress: %w", err)
	}

	result := &OpenSessionResult{
		SessionID: string(sess.ID),
		AppID:     string(sess.AppID),
		UserID:    string(sess.UserID),
		Status:    sess.Status,
		StartedAt: sess.StartedAt,
		Events:    make([]shared.Event, 0, 1),
	}

	event := shared.NewSessionOpenedEvent(string(sess.ID), string(sess.AppID), string(sess.UserID), string(sess.Kind))
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	if h.recorder != nil {
		_ = h.recorder.Record(ctx, &analytics.InteractionEvent{
			ID:         uuid.NewString(),
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			Kind:       analytics.EventKindSessionOpened,
			OccurredAt: startedAt,
		})
	}

	if h.eventPublisher != nil {
		for _, event := range result.Events {
			_ = h.eventPublisher.Publish(event)
		}
	}

	return result, nil
}
