package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

func newStarted(t *testing.T) *Session {
	t.Helper()

	s, err := New("sess-1", "breathing-basics", "user-1", KindPlay, 100, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	return s
}

func TestNew_Valid(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	s, err := New("sess-1", "app", "user-1", KindAssessment, 50, started)

	require.NoError(t, err)
	assert.Equal(t, StatusStarted, s.Status)
	assert.Equal(t, started, s.StartedAt)
	assert.Equal(t, shared.Score(50), s.MaxScore)
	assert.Nil(t, s.CompletedAt)
	assert.False(t, s.Scored)
	assert.True(t, s.IsOpen())
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	_, err := New("", "app", "u", KindPlay, 100, now)
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	_, err = New("s", "", "u", KindPlay, 100, now)
	assert.ErrorIs(t, err, ErrInvalidAppID)

	_, err = New("s", "app", "", KindPlay, 100, now)
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = New("s", "app", "u", Kind("juggling"), 100, now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNew_FutureTimestamp(t *testing.T) {
	_, err := New("s", "app", "u", KindPlay, 100, time.Now().Add(5*time.Minute))
	assert.ErrorIs(t, err, ErrFutureTimestamp)

	// Within the one-minute clock-skew tolerance.
	_, err = New("s", "app", "u", KindPlay, 100, time.Now().Add(30*time.Second))
	assert.NoError(t, err)
}

func TestSession_MarkInProgress(t *testing.T) {
	s := newStarted(t)

	require.NoError(t, s.MarkInProgress())
	assert.Equal(t, StatusInProgress, s.Status)

	// Idempotent while in progress.
	require.NoError(t, s.MarkInProgress())
	assert.Equal(t, StatusInProgress, s.Status)

	require.NoError(t, s.Complete(10, nil, nil, time.Now()))
	assert.ErrorIs(t, s.MarkInProgress(), shared.ErrSessionTerminal)
}

func TestSession_Complete(t *testing.T) {
	s := newStarted(t)
	completedAt := s.StartedAt.Add(4 * time.Minute)
	responses := []byte(`{"q1":"a"}`)

	require.NoError(t, s.Complete(85, responses, nil, completedAt))

	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, shared.Score(85), s.Score)
	assert.Equal(t, responses, s.Responses)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, completedAt, *s.CompletedAt)
	assert.Equal(t, 4*time.Minute, s.Duration)
	assert.False(t, s.IsOpen())
	assert.True(t, s.NeedsScoring())
}

func TestSession_Complete_ScoreValidation(t *testing.T) {
	s := newStarted(t)

	err := s.Complete(-1, nil, nil, time.Now())
	assert.ErrorIs(t, err, shared.ErrNegativeValue)

	err = s.Complete(101, nil, nil, time.Now())
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	// A rejected completion leaves the session open.
	assert.Equal(t, StatusStarted, s.Status)

	assert.NoError(t, s.Complete(100, nil, nil, time.Now()))
}

func TestSession_Complete_EndBeforeStart(t *testing.T) {
	s := newStarted(t)

	err := s.Complete(10, nil, nil, s.StartedAt.Add(-time.Second))
	assert.ErrorIs(t, err, ErrEndBeforeStart)
	assert.True(t, s.IsOpen())
}

func TestSession_TerminalIsImmutable(t *testing.T) {
	s := newStarted(t)
	require.NoError(t, s.Complete(10, nil, nil, time.Now()))

	assert.ErrorIs(t, s.Complete(20, nil, nil, time.Now()), shared.ErrSessionTerminal)
	assert.ErrorIs(t, s.Abandon(time.Now()), shared.ErrSessionTerminal)
	assert.Equal(t, shared.Score(10), s.Score)
}

func TestSession_Abandon(t *testing.T) {
	s := newStarted(t)
	abandonedAt := s.StartedAt.Add(2 * time.Minute)

	require.NoError(t, s.Abandon(abandonedAt))

	assert.Equal(t, StatusAbandoned, s.Status)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, abandonedAt, *s.CompletedAt)
	assert.False(t, s.NeedsScoring())

	assert.ErrorIs(t, s.Complete(10, nil, nil, time.Now()), shared.ErrSessionTerminal)
}

func TestSession_Abandon_EndBeforeStart(t *testing.T) {
	s := newStarted(t)

	err := s.Abandon(s.StartedAt.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrEndBeforeStart)
	assert.True(t, s.IsOpen())
}

func TestSession_MarkScored(t *testing.T) {
	s := newStarted(t)

	// Cannot score an open session.
	assert.ErrorIs(t, s.MarkScored(), shared.ErrSessionTerminal)

	require.NoError(t, s.Complete(10, nil, nil, time.Now()))
	require.True(t, s.NeedsScoring())

	require.NoError(t, s.MarkScored())
	assert.False(t, s.NeedsScoring())

	// Scoring twice is the duplicate-delivery signal.
	assert.ErrorIs(t, s.MarkScored(), shared.ErrSessionAlreadyScored)
}

func TestSession_ReleaseScoring(t *testing.T) {
	s := newStarted(t)
	require.NoError(t, s.Complete(10, nil, nil, time.Now()))
	require.NoError(t, s.MarkScored())

	// Releasing the claim reopens the scoring step for a retry.
	s.ReleaseScoring()
	assert.True(t, s.NeedsScoring())
	require.NoError(t, s.MarkScored())

	// A no-op on non-completed sessions.
	open := newStarted(t)
	open.ReleaseScoring()
	assert.False(t, open.Scored)
}

func TestSession_MarkScored_AbandonedNeverScores(t *testing.T) {
	s := newStarted(t)
	require.NoError(t, s.Abandon(time.Now()))

	assert.ErrorIs(t, s.MarkScored(), shared.ErrSessionTerminal)
}

func TestSession_OwnedBy(t *testing.T) {
	s := newStarted(t)

	assert.True(t, s.OwnedBy("user-1"))
	assert.False(t, s.OwnedBy("someone-else"))
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusStarted.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusAbandoned.IsTerminal())
	assert.False(t, Status("bogus").IsValid())
}
