package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

func TestRecordInteraction_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	res, err := h.interact.Handle(ctx, RecordInteractionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Payload:   []byte(`{"step":3,"answer":"b"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.EventID)
	assert.False(t, res.RecordedAt.IsZero())

	events := h.recorder.BySession(session.ID(sessionID))
	require.Len(t, events, 2) // session_opened plus the interaction
	assert.Equal(t, analytics.EventKindInteraction, events[1].Kind)
	assert.JSONEq(t, `{"step":3,"answer":"b"}`, string(events[1].Payload))
}

func TestRecordInteraction_MarksSessionInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	_, err := h.interact.Handle(ctx, RecordInteractionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Payload:   []byte(`{"step":1}`),
	})
	require.NoError(t, err)

	sess, err := h.sessions.GetByID(ctx, session.ID(sessionID))
	require.NoError(t, err)
	assert.Equal(t, session.StatusInProgress, sess.Status)

	// Further interactions leave the state alone, and the session still
	// completes normally from in_progress.
	_, err = h.interact.Handle(ctx, RecordInteractionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Payload:   []byte(`{"step":2}`),
	})
	require.NoError(t, err)

	res, err := h.complete.Handle(ctx, CompleteSessionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Score:     60,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalSessions)
}

func TestRecordInteraction_TerminalSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	_, err := h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 50})
	require.NoError(t, err)

	_, err = h.interact.Handle(ctx, RecordInteractionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Payload:   []byte(`{}`),
	})
	assert.ErrorIs(t, err, shared.ErrSessionTerminal)
}

func TestRecordInteraction_NotOwned(t *testing.T) {
	h := newHarness(t)
	sessionID := h.openSession(t, "user-1")

	_, err := h.interact.Handle(context.Background(), RecordInteractionCommand{
		SessionID: sessionID,
		UserID:    "intruder",
		Payload:   []byte(`{}`),
	})
	assert.ErrorIs(t, err, shared.ErrSessionNotOwned)
}

func TestRecordInteraction_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.interact.Handle(context.Background(), RecordInteractionCommand{UserID: "user-1"})
	assert.Error(t, err)

	_, err = h.interact.Handle(context.Background(), RecordInteractionCommand{SessionID: "s"})
	assert.Error(t, err)
}
