package command

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

func TestCompleteSession_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	res, err := h.complete.Handle(ctx, CompleteSessionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Score:     80,
		Responses: []byte(`{"q1":"a"}`),
	})
	require.NoError(t, err)

	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.TotalSessions)
	assert.Equal(t, 10, res.Summary.TotalMinutes)
	assert.Equal(t, 80, res.Summary.BestScore.Int())
	assert.Equal(t, 80.0, res.Summary.AverageScore)
	assert.Equal(t, 1, res.Summary.Streak)

	// 80 score at the default multiplier plus the first-completion reward.
	assert.Equal(t, 80*progress.DefaultXPMultiplier+50, res.Summary.XP.Int())
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.OldLevel)
	assert.Equal(t, 2, res.NewLevel)

	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, string(progress.AchievementFirstCompletion), res.Unlocked[0].ID)
	assert.Equal(t, "First Steps", res.Unlocked[0].Name)
	assert.Equal(t, 50, res.Unlocked[0].RewardXP)

	// The session is terminal and scored.
	sess, err := h.sessions.GetByID(ctx, session.ID(sessionID))
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status)
	assert.True(t, sess.Scored)

	assert.Len(t, h.bus.byType(shared.EventSessionCompleted), 1)
	assert.Len(t, h.bus.byType(shared.EventProgressUpdated), 1)
	assert.Len(t, h.bus.byType(shared.EventLevelUp), 1)
	assert.Len(t, h.bus.byType(shared.EventAchievementUnlocked), 1)
}

func TestCompleteSession_PerfectScore(t *testing.T) {
	h := newHarness(t)
	sessionID := h.openSession(t, "user-1")

	res, err := h.complete.Handle(context.Background(), CompleteSessionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Score:     100,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Unlocked))
	for _, u := range res.Unlocked {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{
		string(progress.AchievementFirstCompletion),
		string(progress.AchievementPerfectScore),
	}, ids)

	// 200 score XP plus 50 and 100 in rewards.
	assert.Equal(t, 350, res.Summary.XP.Int())
	assert.Equal(t, 3, res.Summary.Level.Int())
}

func TestCompleteSession_NotOwned(t *testing.T) {
	h := newHarness(t)
	sessionID := h.openSession(t, "user-1")

	_, err := h.complete.Handle(context.Background(), CompleteSessionCommand{
		SessionID: sessionID,
		UserID:    "intruder",
		Score:     10,
	})
	assert.ErrorIs(t, err, shared.ErrSessionNotOwned)
}

func TestCompleteSession_AlreadyScored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	_, err := h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 50})
	require.NoError(t, err)

	_, err = h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 50})
	assert.ErrorIs(t, err, shared.ErrSessionAlreadyScored)

	// The duplicate never double-counts.
	summary, err := h.progress.Get(ctx, progress.Key{AppID: "breathing-basics", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSessions)
}

func TestCompleteSession_AbandonedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	_, err := h.abandon.Handle(ctx, AbandonSessionCommand{SessionID: sessionID, UserID: "user-1"})
	require.NoError(t, err)

	_, err = h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 50})
	assert.ErrorIs(t, err, shared.ErrSessionTerminal)
}

func TestCompleteSession_ScoreAboveCeilingKeepsSessionOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	_, err := h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 101})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	// A valid retry still works after the rejection.
	_, err = h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 100})
	assert.NoError(t, err)
}

func TestCompleteSession_ResumesUnscoredCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sessionID := h.openSession(t, "user-1")

	// A previous attempt flipped the session to completed but lost the
	// summary update; replay the command to finish the scoring step.
	sess, err := h.sessions.GetByID(ctx, session.ID(sessionID))
	require.NoError(t, err)
	require.NoError(t, sess.Complete(70, nil, nil, time.Now()))
	require.NoError(t, h.sessions.Update(ctx, sess))

	res, err := h.complete.Handle(ctx, CompleteSessionCommand{SessionID: sessionID, UserID: "user-1", Score: 70})
	require.NoError(t, err)

	// The stored outcome is what gets folded in, exactly once.
	assert.Equal(t, 1, res.Summary.TotalSessions)
	assert.Equal(t, 70, res.Summary.BestScore.Int())

	stored, err := h.sessions.GetByID(ctx, session.ID(sessionID))
	require.NoError(t, err)
	assert.True(t, stored.Scored)
}

func TestCompleteSession_ConcurrentCompletionsStayExact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const sessions = 10
	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = h.openSession(t, "user-1")
	}

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.complete.Handle(ctx, CompleteSessionCommand{
				SessionID: id,
				UserID:    "user-1",
				Score:     50,
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	summary, err := h.progress.Get(ctx, progress.Key{AppID: "breathing-basics", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, sessions, summary.TotalSessions)
	assert.Equal(t, 50, summary.BestScore.Int())
	assert.Equal(t, 50.0, summary.AverageScore)

	// 10 sessions of 100 XP each plus first-completion and marathon rewards,
	// each granted exactly once.
	assert.Equal(t, 10*100+50+150, summary.XP.Int())
	assert.True(t, summary.HasAchievement(progress.AchievementFirstCompletion))
	assert.True(t, summary.HasAchievement(progress.AchievementMarathon10))
	assert.False(t, summary.HasAchievement(progress.AchievementPerfectScore))
}

func TestCompleteSession_DuplicateSubmissionsCountOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const sessions = 30
	const submitters = 8
	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = h.openSession(t, "user-1")
	}

	// A resubmitted network request races the original. The session claim
	// admits exactly one submitter per session to the summary fold; the
	// rest find the session already scored.
	var successes int64
	var wg sync.WaitGroup
	for _, id := range ids {
		for g := 0; g < submitters; g++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := h.complete.Handle(ctx, CompleteSessionCommand{
					SessionID: id,
					UserID:    "user-1",
					Score:     50,
				})
				if err == nil {
					atomic.AddInt64(&successes, 1)
					return
				}
				assert.ErrorIs(t, err, shared.ErrSessionAlreadyScored)
			}(id)
		}
	}
	wg.Wait()

	assert.EqualValues(t, sessions, successes)

	summary, err := h.progress.Get(ctx, progress.Key{AppID: "breathing-basics", UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, sessions, summary.TotalSessions)
	assert.Equal(t, 50.0, summary.AverageScore)
	assert.Equal(t, sessions*100+50+150, summary.XP.Int())

	// Only winning submissions publish events.
	assert.Len(t, h.bus.byType(shared.EventSessionCompleted), sessions)
	assert.Len(t, h.bus.byType(shared.EventProgressUpdated), sessions)
}

func TestCompleteSession_NilEventPublisher(t *testing.T) {
	h := newHarness(t)
	handler := NewCompleteSessionHandler(
		h.sessions, h.progress,
		progress.NewEvaluator(progress.DefaultRules()),
		h.recorder, nil, nil, 0,
	)
	sessionID := h.openSession(t, "user-1")

	res, err := handler.Handle(context.Background(), CompleteSessionCommand{
		SessionID: sessionID,
		UserID:    "user-1",
		Score:     40,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalSessions)
}
