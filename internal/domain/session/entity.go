// Package session contains the lifecycle state machine for individual
// play/assessment attempts. A session is owned exclusively by the user who
// created it and becomes immutable once it reaches a terminal state.
// This is a pure domain layer with zero external dependencies.
package session

import (
	"errors"
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// Domain errors for session package.
var (
	ErrInvalidSessionID = errors.New("session: invalid session ID")
	ErrInvalidAppID     = errors.New("session: invalid app ID")
	ErrInvalidUserID    = errors.New("session: invalid user ID")
	ErrFutureTimestamp  = errors.New("session: timestamp cannot be in the future")
	ErrEndBeforeStart   = errors.New("session: completion time cannot be before start time")
)

// ID represents a unique identifier for a session.
type ID string

// IsValid checks if the session ID is valid.
func (id ID) IsValid() bool {
	return id != ""
}

// String returns the string representation of ID.
func (id ID) String() string {
	return string(id)
}

// Kind classifies what a session attempt is for.
type Kind string

const (
	KindPlay       Kind = "play"
	KindAssessment Kind = "assessment"
	KindPractice   Kind = "practice"
	KindReview     Kind = "review"
)

// IsValid checks if the kind is a known session kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindPlay, KindAssessment, KindPractice, KindReview:
		return true
	default:
		return false
	}
}

// Status represents the current state of a session.
type Status string

const (
	// StatusStarted - the session was opened and no work has been recorded yet.
	StatusStarted Status = "started"
	// StatusInProgress - optional intermediate state for multi-step activities.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - terminal; the attempt finished with a score.
	StatusCompleted Status = "completed"
	// StatusAbandoned - terminal; the attempt was cancelled and never scored.
	StatusAbandoned Status = "abandoned"
)

// IsValid checks if the status is a known state.
func (s Status) IsValid() bool {
	switch s {
	case StatusStarted, StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for the two terminal states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Session represents one attempt by one user at one catalog app.
//
// State machine: started -> in_progress (optional) -> completed | abandoned.
// CompletedAt is set iff the status is terminal. Scored tracks whether a
// completed session's outcome has been folded into the progress summary;
// it lags Completed when the aggregate update hit contention and the caller
// must retry the scoring step.
type Session struct {
	ID     ID
	AppID  catalog.AppID
	UserID shared.UserID
	Kind   Kind

	StartedAt   time.Time
	CompletedAt *time.Time // nil until the session is terminal
	Duration    time.Duration

	Score    shared.Score
	MaxScore shared.Score

	// Responses and InteractionData are opaque serialized blobs supplied by
	// the activity front-end. The engine stores and forwards them without
	// interpreting their structure.
	Responses       []byte
	InteractionData []byte

	Status Status
	Scored bool
}

// New creates a new session in the started state.
func New(id ID, appID catalog.AppID, userID shared.UserID, kind Kind, maxScore shared.Score, startedAt time.Time) (*Session, error) {
	if !id.IsValid() {
		return nil, ErrInvalidSessionID
	}
	if !appID.IsValid() {
		return nil, ErrInvalidAppID
	}
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("session", "New", shared.ErrInvalidInput, "unknown session kind")
	}
	if startedAt.After(time.Now().Add(time.Minute)) { // Allow 1 minute tolerance
		return nil, ErrFutureTimestamp
	}

	return &Session{
		ID:        id,
		AppID:     appID,
		UserID:    userID,
		Kind:      kind,
		MaxScore:  maxScore,
		StartedAt: startedAt,
		Status:    StatusStarted,
	}, nil
}

// MarkInProgress transitions a started session into the optional
// in_progress state. A no-op if the session is already in progress.
func (s *Session) MarkInProgress() error {
	switch s.Status {
	case StatusStarted:
		s.Status = StatusInProgress
		return nil
	case StatusInProgress:
		return nil
	default:
		return shared.ErrSessionTerminal
	}
}

// Complete transitions the session to the completed terminal state,
// recording the score and the opaque payloads. The duration is derived
// from the start and completion timestamps.
func (s *Session) Complete(score shared.Score, responses, interactionData []byte, completedAt time.Time) error {
	if s.Status.IsTerminal() {
		return shared.ErrSessionTerminal
	}
	if err := shared.ValidateScore(score, s.MaxScore); err != nil {
		return err
	}
	if completedAt.Before(s.StartedAt) {
		return ErrEndBeforeStart
	}

	s.Score = score
	s.Responses = responses
	s.InteractionData = interactionData
	s.CompletedAt = &completedAt
	s.Duration = completedAt.Sub(s.StartedAt)
	s.Status = StatusCompleted
	return nil
}

// Abandon transitions the session to the abandoned terminal state.
// Abandoned sessions never contribute to progress, streaks, or XP.
func (s *Session) Abandon(abandonedAt time.Time) error {
	if s.Status.IsTerminal() {
		return shared.ErrSessionTerminal
	}
	if abandonedAt.Before(s.StartedAt) {
		return ErrEndBeforeStart
	}

	s.CompletedAt = &abandonedAt
	s.Duration = abandonedAt.Sub(s.StartedAt)
	s.Status = StatusAbandoned
	return nil
}

// MarkScored records that the session's outcome has been applied to the
// progress summary. Only completed sessions can be scored.
func (s *Session) MarkScored() error {
	if s.Status != StatusCompleted {
		return shared.ErrSessionTerminal
	}
	if s.Scored {
		return shared.ErrSessionAlreadyScored
	}
	s.Scored = true
	return nil
}

// ReleaseScoring reverts a scoring claim whose summary update did not
// commit, so a retried completion can resume the scoring step.
func (s *Session) ReleaseScoring() {
	if s.Status == StatusCompleted {
		s.Scored = false
	}
}

// IsOpen returns true while the session can still transition.
func (s *Session) IsOpen() bool {
	return !s.Status.IsTerminal()
}

// NeedsScoring reports a completed session whose outcome has not yet been
// folded into the progress summary (a prior scoring attempt hit contention).
func (s *Session) NeedsScoring() bool {
	return s.Status == StatusCompleted && !s.Scored
}

// OwnedBy checks session ownership. Sessions are only visible to the user
// who created them.
func (s *Session) OwnedBy(userID shared.UserID) bool {
	return s.UserID == userID
}
