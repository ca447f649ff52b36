package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

func day(offset int) time.Time {
	base := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestNewSummary_AllZero(t *testing.T) {
	s := NewSummary(Key{AppID: "breathing-basics", UserID: "user-1"})

	assert.Equal(t, 0, s.TotalSessions)
	assert.Equal(t, 0, s.TotalMinutes)
	assert.Equal(t, 0, s.BestScore.Int())
	assert.Equal(t, 0.0, s.AverageScore)
	assert.Equal(t, shared.MinLevel, s.Level)
	assert.Equal(t, 0, s.XP.Int())
	assert.Empty(t, s.Achievements)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, TierNovice, s.Mastery)
	assert.EqualValues(t, 0, s.Version)
}

func TestSummary_Apply_ExactMean(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 80, At: day(0)}, DefaultXPMultiplier)
	assert.Equal(t, 1, s.TotalSessions)
	assert.Equal(t, 80.0, s.AverageScore)

	s.Apply(Completion{Score: 100, At: day(0)}, DefaultXPMultiplier)
	assert.Equal(t, 2, s.TotalSessions)
	assert.Equal(t, 90.0, s.AverageScore)

	s.Apply(Completion{Score: 60, At: day(0)}, DefaultXPMultiplier)
	assert.Equal(t, 3, s.TotalSessions)
	assert.Equal(t, 80.0, s.AverageScore)
}

func TestSummary_Apply_BestScoreNeverDecreases(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 70, At: day(0)}, 2)
	assert.Equal(t, 70, s.BestScore.Int())

	s.Apply(Completion{Score: 95, At: day(0)}, 2)
	assert.Equal(t, 95, s.BestScore.Int())

	s.Apply(Completion{Score: 40, At: day(0)}, 2)
	assert.Equal(t, 95, s.BestScore.Int())
}

func TestSummary_Apply_MinutesTruncatedPerSession(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	// 2m30s truncates to 2 minutes.
	s.Apply(Completion{DurationSeconds: 150, Score: 10, At: day(0)}, 2)
	assert.Equal(t, 2, s.TotalMinutes)

	// 59s truncates to zero; the two leftovers never merge into a minute.
	s.Apply(Completion{DurationSeconds: 59, Score: 10, At: day(0)}, 2)
	assert.Equal(t, 2, s.TotalMinutes)

	s.Apply(Completion{DurationSeconds: 61, Score: 10, At: day(0)}, 2)
	assert.Equal(t, 3, s.TotalMinutes)
}

func TestSummary_Apply_XPAndLevel(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 30, At: day(0)}, 2)
	assert.Equal(t, 60, s.XP.Int())
	assert.Equal(t, 1, s.Level.Int())

	// 60 + 80 = 140 XP crosses the 100 XP boundary into level 2.
	s.Apply(Completion{Score: 40, At: day(0)}, 2)
	assert.Equal(t, 140, s.XP.Int())
	assert.Equal(t, 2, s.Level.Int())
}

func TestSummary_Apply_ZeroMultiplierFallsBackToDefault(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 10, At: day(0)}, 0)
	assert.Equal(t, 10*DefaultXPMultiplier, s.XP.Int())
}

func TestSummary_Apply_Streak(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 10, At: day(0)}, 2)
	assert.Equal(t, 1, s.Streak)

	// Second completion the same day keeps the streak.
	s.Apply(Completion{Score: 10, At: day(0).Add(2 * time.Hour)}, 2)
	assert.Equal(t, 1, s.Streak)

	// Next calendar day extends it.
	s.Apply(Completion{Score: 10, At: day(1)}, 2)
	assert.Equal(t, 2, s.Streak)

	s.Apply(Completion{Score: 10, At: day(2)}, 2)
	assert.Equal(t, 3, s.Streak)

	// A gap resets to 1.
	s.Apply(Completion{Score: 10, At: day(5)}, 2)
	assert.Equal(t, 1, s.Streak)
}

func TestSummary_Apply_StreakUsesUTCDay(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	s.Apply(Completion{Score: 10, At: day(0)}, 2)
	require.Equal(t, 1, s.Streak)

	// 2026-03-10 23:30 -05:00 is 2026-03-11 04:30 UTC: the next calendar
	// day in UTC even though the local date has not rolled over.
	est := time.FixedZone("EST", -5*60*60)
	s.Apply(Completion{Score: 10, At: time.Date(2026, 3, 10, 23, 30, 0, 0, est)}, 2)
	assert.Equal(t, 2, s.Streak)

	// Same UTC day expressed with a positive offset keeps the streak.
	alm := time.FixedZone("ALMT", 6*60*60)
	s.Apply(Completion{Score: 10, At: time.Date(2026, 3, 11, 23, 50, 0, 0, alm)}, 2)
	assert.Equal(t, 2, s.Streak)
}

func TestSummary_Apply_LastPlayedAt(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	at := day(0)
	s.Apply(Completion{Score: 10, At: at}, 2)
	assert.Equal(t, at, s.LastPlayedAt)
}

func TestSummary_MasteryAdvancesAndNeverRegresses(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	// 100 score * 2 = 200 XP crosses the beginner threshold.
	s.Apply(Completion{Score: 100, At: day(0)}, 2)
	assert.Equal(t, TierBeginner, s.Mastery)

	// A tier reached by hand stays even when the computed tier is lower.
	s.Mastery = TierAdvanced
	s.Apply(Completion{Score: 1, At: day(0)}, 2)
	assert.Equal(t, TierAdvanced, s.Mastery)
}

func TestTierFor_Thresholds(t *testing.T) {
	assert.Equal(t, TierNovice, TierFor(0, 0))
	assert.Equal(t, TierNovice, TierFor(99, 2))
	assert.Equal(t, TierBeginner, TierFor(100, 0))
	assert.Equal(t, TierBeginner, TierFor(0, 3))
	assert.Equal(t, TierIntermediate, TierFor(500, 0))
	assert.Equal(t, TierIntermediate, TierFor(0, 10))
	assert.Equal(t, TierAdvanced, TierFor(2000, 0))
	assert.Equal(t, TierExpert, TierFor(5000, 0))
	assert.Equal(t, TierExpert, TierFor(0, 50))
}

func TestSummary_AddAchievement(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})

	added := s.AddAchievement(AchievementFirstCompletion, 50)
	require.True(t, added)
	assert.True(t, s.HasAchievement(AchievementFirstCompletion))
	assert.Equal(t, 50, s.XP.Int())

	// Adding again is a no-op: no duplicate entry, no double reward.
	added = s.AddAchievement(AchievementFirstCompletion, 50)
	assert.False(t, added)
	assert.Len(t, s.Achievements, 1)
	assert.Equal(t, 50, s.XP.Int())
}

func TestSummary_AddAchievement_RewardCanLevelUp(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})
	s.XP = 80
	s.Level = s.XP.Level()

	s.AddAchievement(AchievementPerfectScore, 100)
	assert.Equal(t, 180, s.XP.Int())
	assert.Equal(t, 2, s.Level.Int())
}

func TestSummary_Clone_Isolated(t *testing.T) {
	s := NewSummary(Key{AppID: "app", UserID: "u"})
	s.AddAchievement(AchievementFirstCompletion, 50)

	cp := s.Clone()
	cp.TotalSessions = 99
	cp.AddAchievement(AchievementPerfectScore, 100)

	assert.Equal(t, 0, s.TotalSessions)
	assert.Len(t, s.Achievements, 1)
	assert.Len(t, cp.Achievements, 2)
}

func TestKey_String(t *testing.T) {
	k := Key{AppID: "breathing-basics", UserID: "user-1"}
	assert.Equal(t, "breathing-basics:user-1", k.String())
	assert.True(t, k.IsValid())
	assert.False(t, Key{AppID: "a"}.IsValid())
}

func TestXPLevel_ProgressiveBoundaries(t *testing.T) {
	// Reaching level L+1 from L costs 100*L XP: level 2 at 100 total,
	// level 3 at 300, level 4 at 600, level 5 at 1000.
	assert.Equal(t, 1, shared.XP(0).Level().Int())
	assert.Equal(t, 1, shared.XP(99).Level().Int())
	assert.Equal(t, 2, shared.XP(100).Level().Int())
	assert.Equal(t, 2, shared.XP(299).Level().Int())
	assert.Equal(t, 3, shared.XP(300).Level().Int())
	assert.Equal(t, 4, shared.XP(600).Level().Int())
	assert.Equal(t, 5, shared.XP(1000).Level().Int())
}
