package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// Finishes a session with a score and folds the outcome into the progress
// summary: counters, XP, level, streak, mastery, and achievement unlocks all
// land in one atomic update per (app, user) key.
//
// Completion first claims the session with a compare-and-swap transition
// (open and unscored -> completed and scored), so of any set of duplicate
// requests exactly one reaches the summary fold. If the fold then hits
// contention the claim is released and the session stays
// completed-but-unscored; a retry of this command re-runs only the scoring
// step, so the two steps converge without ever double-counting a session.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand contains the data to complete a session.
type CompleteSessionCommand struct {
	// SessionID identifies the session to complete.
	SessionID string

	// UserID is the caller; must match the session owner.
	UserID string

	// Score is the achieved score in [0, app.MaxScore].
	Score int

	// Responses is the opaque serialized answer payload.
	Responses []byte

	// InteractionData is the opaque serialized interaction telemetry.
	InteractionData []byte

	// CompletedAt is when the session finished (defaults to now if zero).
	CompletedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteSessionCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("command", "CompleteSession", shared.ErrValidation, "session_id is required")
	}
	if c.UserID == "" {
		return shared.NewDomainError("command", "CompleteSession", shared.ErrValidation, "user_id is required")
	}
	if c.Score < 0 {
		return shared.NewDomainError("command", "CompleteSession", shared.ErrNegativeValue, "score cannot be negative")
	}
	return nil
}

// UnlockedAchievement describes one achievement granted by this completion.
type UnlockedAchievement struct {
	ID       string
	Name     string
	RewardXP int
}

// CompleteSessionResult contains the result of completing a session.
type CompleteSessionResult struct {
	// SessionID is the completed session.
	SessionID string

	// Summary is the post-update progress snapshot.
	Summary *progress.Summary

	// Unlocked lists achievements granted by this completion.
	Unlocked []UnlockedAchievement

	// LeveledUp indicates the XP crossed a level boundary.
	LeveledUp bool
	OldLevel  int
	NewLevel  int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionHandler handles the CompleteSessionCommand.
type CompleteSessionHandler struct {
	sessionRepo    session.Repository
	progressRepo   progress.Repository
	evaluator      *progress.Evaluator
	recorder       analytics.Recorder
	eventPublisher shared.EventPublisher
	log            *logger.Logger

	// XP granted per score point.
	xpMultiplier int
}

// NewCompleteSessionHandler creates a new CompleteSessionHandler.
func NewCompleteSessionHandler(
	sessionRepo session.Repository,
	progressRepo progress.Repository,
	evaluator *progress.Evaluator,
	recorder analytics.Recorder,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
	xpMultiplier int,
) *CompleteSessionHandler {
	if xpMultiplier <= 0 {
		xpMultiplier = progress.DefaultXPMultiplier
	}
	if log == nil {
		log = logger.Default()
	}

	return &CompleteSessionHandler{
		sessionRepo:    sessionRepo,
		progressRepo:   progressRepo,
		evaluator:      evaluator,
		recorder:       recorder,
		eventPublisher: eventPublisher,
		log:            log,
		xpMultiplier:   xpMultiplier,
	}
}

// Handle executes the complete session command.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (*CompleteSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_session: validation failed: %w", err)
	}

	completedAt := cmd.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	sess, err := h.sessionRepo.GetByID(ctx, session.ID(cmd.SessionID))
	if err != nil {
		return nil, fmt.Errorf("complete_session: failed to get session: %w", err)
	}

	if !sess.OwnedBy(shared.UserID(cmd.UserID)) {
		return nil, shared.ErrSessionNotOwned
	}

	// Step one: claim the session. The compare-and-swap transition admits
	// exactly one of any set of racing duplicate requests to the summary
	// fold; losers re-read and re-route, which in practice means they find
	// the session already scored.
	for {
		var claimErr error

		switch {
		case sess.IsOpen():
			prev := sess.Status
			if err := sess.Complete(shared.Score(cmd.Score), cmd.Responses, cmd.InteractionData, completedAt); err != nil {
				return nil, err
			}
			if err := sess.MarkScored(); err != nil {
				return nil, fmt.Errorf("complete_session: failed to mark scored: %w", err)
			}
			claimErr = h.sessionRepo.UpdateIf(ctx, sess, prev, false)
		case sess.NeedsScoring():
			// A previous attempt completed the session but lost the summary
			// update to contention; claim the scoring step and resume with
			// the stored score.
			if err := sess.MarkScored(); err != nil {
				return nil, fmt.Errorf("complete_session: failed to mark scored: %w", err)
			}
			claimErr = h.sessionRepo.UpdateIf(ctx, sess, session.StatusCompleted, false)
		default:
			if sess.Status == session.StatusCompleted {
				return nil, shared.ErrSessionAlreadyScored
			}
			return nil, shared.ErrSessionTerminal
		}

		if claimErr == nil {
			break
		}
		if !errors.Is(claimErr, shared.ErrSessionStateChanged) {
			return nil, fmt.Errorf("complete_session: failed to update session: %w", claimErr)
		}

		sess, err = h.sessionRepo.GetByID(ctx, session.ID(cmd.SessionID))
		if err != nil {
			return nil, fmt.Errorf("complete_session: failed to get session: %w", err)
		}
	}

	result := &CompleteSessionResult{
		SessionID: cmd.SessionID,
		Events:    make([]shared.Event, 0, 4),
	}

	key := progress.Key{AppID: sess.AppID, UserID: sess.UserID}

	// Step two: one atomic read-modify-write folds the completion and any
	// achievement unlocks into the summary. The closure may run more than
	// once under optimistic retries, so it resets its outputs each attempt.
	var (
		unlocked []progress.Rule
		failed   []progress.RuleError
		oldLevel shared.Level
	)

	summary, err := h.progressRepo.UpdateAtomic(ctx, key, func(p *progress.Summary) error {
		unlocked = nil
		failed = nil
		oldLevel = p.Level

		p.Apply(progress.Completion{
			DurationSeconds: int(sess.Duration.Seconds()),
			Score:           sess.Score,
			At:              *sess.CompletedAt,
		}, h.xpMultiplier)

		if h.evaluator != nil {
			unlocked, failed = h.evaluator.Evaluate(sess, p)
			for _, rule := range unlocked {
				p.AddAchievement(rule.ID, rule.Reward)
			}
		}
		return nil
	})
	if err != nil {
		// Release the scoring claim so a retry of the command can resume
		// this step; the session stays completed and unscored.
		sess.ReleaseScoring()
		if relErr := h.sessionRepo.UpdateIf(ctx, sess, session.StatusCompleted, true); relErr != nil {
			h.log.Error("failed to release scoring claim",
				logger.SessionID(cmd.SessionID),
				logger.Err(relErr),
			)
		}
		return nil, fmt.Errorf("complete_session: failed to update progress: %w", err)
	}

	for _, f := range failed {
		h.log.Error("achievement rule failed, skipping",
			logger.Achievement(string(f.RuleID)),
			logger.SessionID(cmd.SessionID),
			logger.Err(f.Err),
		)
	}

	result.Summary = summary
	result.OldLevel = oldLevel.Int()
	result.NewLevel = summary.Level.Int()
	result.LeveledUp = summary.Level > oldLevel
	for _, rule := range unlocked {
		result.Unlocked = append(result.Unlocked, UnlockedAchievement{
			ID:       string(rule.ID),
			Name:     rule.Name,
			RewardXP: rule.Reward.Int(),
		})
	}

	h.collectEvents(cmd, sess, summary, result)

	if h.recorder != nil {
		_ = h.recorder.Record(ctx, &analytics.InteractionEvent{
			ID:         uuid.NewString(),
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			Kind:       analytics.EventKindSessionCompleted,
			Payload:    cmd.InteractionData,
			OccurredAt: completedAt,
		})
	}

	if h.eventPublisher != nil {
		for _, event := range result.Events {
			_ = h.eventPublisher.Publish(event)
		}
	}

	return result, nil
}

// collectEvents assembles the domain events for a scored completion.
func (h *CompleteSessionHandler) collectEvents(
	cmd CompleteSessionCommand,
	sess *session.Session,
	summary *progress.Summary,
	result *CompleteSessionResult,
) {
	appID := string(sess.AppID)
	userID := string(sess.UserID)

	completed := shared.NewSessionCompletedEvent(
		string(sess.ID), appID, userID,
		sess.Score.Int(), sess.MaxScore.Int(), sess.Duration,
	)
	if cmd.CorrelationID != "" {
		completed.BaseEvent = completed.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, completed)

	result.Events = append(result.Events, shared.NewProgressUpdatedEvent(
		appID, userID,
		summary.TotalSessions, summary.BestScore.Int(),
		summary.AverageScore, summary.XP.Int(),
	))

	if result.LeveledUp {
		result.Events = append(result.Events, shared.NewLevelUpEvent(appID, userID, result.OldLevel, result.NewLevel))
	}

	for _, a := range result.Unlocked {
		result.Events = append(result.Events, shared.NewAchievementUnlockedEvent(appID, userID, a.ID, a.RewardXP))
	}
}
