// Package progress contains the per-(app, user) aggregate state machine:
// the durable summary of all completed sessions, mastery tiers, and the
// achievement rule engine. This is a pure domain layer with zero external
// dependencies; concurrency control lives behind the Repository contract.
package progress

import (
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// DefaultXPMultiplier is the XP earned per score point. Configurable via
// the engine configuration; never derived from session data.
const DefaultXPMultiplier = 2

// Key identifies a progress summary: exactly one row exists per (app, user).
type Key struct {
	AppID  catalog.AppID
	UserID shared.UserID
}

// IsValid checks that both halves of the key are set.
func (k Key) IsValid() bool {
	return k.AppID.IsValid() && k.UserID.IsValid()
}

// String returns the canonical "appID:userID" form, used as the aggregate ID
// in events and cache keys.
func (k Key) String() string {
	return string(k.AppID) + ":" + string(k.UserID)
}

// Summary is the aggregate snapshot for one (app, user) pair.
// Created lazily on first session open with all-zero counters; mutated only
// through Apply and achievement grants, both under the repository's atomic
// read-modify-write discipline; never deleted.
type Summary struct {
	AppID  catalog.AppID
	UserID shared.UserID

	// TotalSessions only increases, by exactly 1 per completed session.
	TotalSessions int

	// TotalMinutes is accumulated play time, truncated to whole minutes
	// per session at apply time.
	TotalMinutes int

	// BestScore never decreases.
	BestScore shared.Score

	// AverageScore is the exact arithmetic mean of all completed-session
	// scores, maintained incrementally.
	AverageScore float64

	Level shared.Level
	XP    shared.XP

	// Achievements is a set of earned achievement IDs; an ID appears at
	// most once regardless of how often its rule would re-fire.
	Achievements []AchievementID

	// Streak counts consecutive days with at least one completed session.
	Streak int

	LastPlayedAt time.Time

	// Mastery is a pure function of (XP, TotalSessions) and never regresses.
	Mastery Tier

	// Version is the optimistic-concurrency counter maintained by the
	// repository. Zero for a fresh in-memory summary.
	Version int64
}

// NewSummary creates the all-zero summary for a fresh (app, user) pair.
func NewSummary(key Key) *Summary {
	return &Summary{
		AppID:   key.AppID,
		UserID:  key.UserID,
		Level:   shared.MinLevel,
		Mastery: TierNovice,
	}
}

// Key returns the summary's (app, user) key.
func (p *Summary) Key() Key {
	return Key{AppID: p.AppID, UserID: p.UserID}
}

// Completion carries one completed-session outcome into Apply.
type Completion struct {
	DurationSeconds int
	Score           shared.Score
	At              time.Time
}

// Apply folds exactly one completed session into the summary. All update
// rules derive from the pre-update snapshot and the incoming completion, so
// any serial order of Apply calls yields counters equivalent to that order.
// Callers must invoke Apply inside the repository's atomic update.
func (p *Summary) Apply(c Completion, xpMultiplier int) {
	if xpMultiplier <= 0 {
		xpMultiplier = DefaultXPMultiplier
	}

	n := p.TotalSessions

	p.TotalSessions = n + 1
	p.TotalMinutes += c.DurationSeconds / 60
	if c.Score > p.BestScore {
		p.BestScore = c.Score
	}
	p.AverageScore = (p.AverageScore*float64(n) + float64(c.Score)) / float64(n+1)
	p.XP = p.XP.Add(c.Score.Int() * xpMultiplier)
	p.Level = p.XP.Level()

	p.updateStreak(c.At)
	p.LastPlayedAt = c.At

	p.advanceMastery()
}

// AddAchievement unions one achievement into the set and credits its XP
// reward. Returns false without modifying anything if the achievement was
// already earned. Callers must invoke this inside the repository's atomic
// update, same as Apply.
func (p *Summary) AddAchievement(id AchievementID, reward shared.XP) bool {
	for _, earned := range p.Achievements {
		if earned == id {
			return false
		}
	}

	p.Achievements = append(p.Achievements, id)
	p.XP = p.XP.Add(reward.Int())
	p.Level = p.XP.Level()
	p.advanceMastery()
	return true
}

// HasAchievement checks membership in the achievement set.
func (p *Summary) HasAchievement(id AchievementID) bool {
	for _, earned := range p.Achievements {
		if earned == id {
			return true
		}
	}
	return false
}

// updateStreak maintains the consecutive-day counter: same day keeps it,
// the next day extends it, any gap resets it to 1.
func (p *Summary) updateStreak(at time.Time) {
	day := truncateToDay(at)

	if p.LastPlayedAt.IsZero() {
		p.Streak = 1
		return
	}

	lastDay := truncateToDay(p.LastPlayedAt)
	daysDiff := int(day.Sub(lastDay).Hours() / 24)

	switch {
	case daysDiff == 0:
		// Same day, streak unchanged
	case daysDiff == 1:
		p.Streak++
	default:
		p.Streak = 1
	}
}

// advanceMastery recomputes the tier and keeps the higher of the current
// and computed tiers, so mastery never regresses.
func (p *Summary) advanceMastery() {
	computed := TierFor(p.XP, p.TotalSessions)
	if computed.Rank() > p.Mastery.Rank() {
		p.Mastery = computed
	}
}

// Clone returns a deep copy of the summary. Repositories hand out clones so
// callers can never mutate shared state outside the atomic update.
func (p *Summary) Clone() *Summary {
	cp := *p
	cp.Achievements = make([]AchievementID, len(p.Achievements))
	copy(cp.Achievements, p.Achievements)
	return &cp
}

// truncateToDay returns the UTC date portion of a time (midnight UTC).
// Caller-supplied timestamps may carry any zone offset.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
