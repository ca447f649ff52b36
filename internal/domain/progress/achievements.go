package progress

import (
	"fmt"

	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// AchievementID identifies one achievement definition.
type AchievementID string

// Built-in achievement identifiers.
const (
	// AchievementFirstCompletion - first-ever completed session for this (app, user).
	AchievementFirstCompletion AchievementID = "first_completion"
	// AchievementPerfectScore - a session scored at the app's ceiling.
	AchievementPerfectScore AchievementID = "perfect_score"
	// AchievementStreak7 - 7 consecutive days with a completed session.
	AchievementStreak7 AchievementID = "streak_7"
	// AchievementMarathon10 - 10 completed sessions for one app.
	AchievementMarathon10 AchievementID = "marathon_10"
)

// Predicate is an unlock rule evaluated against the just-completed session
// and the post-update progress summary. Predicates must be pure: no side
// effects, no stored state.
type Predicate func(s *session.Session, post *Summary) bool

// Rule binds an achievement definition to its unlock predicate. New
// achievements are additive: register another Rule, nothing else changes.
type Rule struct {
	ID        AchievementID
	Name      string
	Reward    shared.XP
	Predicate Predicate
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:     AchievementFirstCompletion,
			Name:   "First Steps",
			Reward: 50,
			Predicate: func(_ *session.Session, post *Summary) bool {
				return post.TotalSessions == 1
			},
		},
		{
			ID:     AchievementPerfectScore,
			Name:   "Flawless",
			Reward: 100,
			Predicate: func(s *session.Session, _ *Summary) bool {
				return s.MaxScore > 0 && s.Score == s.MaxScore
			},
		},
		{
			ID:     AchievementStreak7,
			Name:   "Week of Momentum",
			Reward: 100,
			Predicate: func(_ *session.Session, post *Summary) bool {
				return post.Streak >= 7
			},
		},
		{
			ID:     AchievementMarathon10,
			Name:   "Marathoner",
			Reward: 150,
			Predicate: func(_ *session.Session, post *Summary) bool {
				return post.TotalSessions >= 10
			},
		},
	}
}

// RuleError describes one rule that failed to evaluate. A broken rule is
// skipped; it must never block scoring of the session.
type RuleError struct {
	RuleID AchievementID
	Err    error
}

// Evaluator runs the registered rules against completed sessions.
// It is stateless; the same evaluator is shared across all users.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator creates an evaluator with the given rules.
func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{rules: rules}
}

// Register appends an additional rule.
func (e *Evaluator) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule list.
func (e *Evaluator) Rules() []Rule {
	return e.rules
}

// Evaluate returns the rules whose predicates fire for this completion and
// that are not already present in the summary's achievement set. Rules that
// panic are collected as RuleErrors and skipped. Evaluation is read-only;
// the caller appends the unlocks through the atomic update path.
func (e *Evaluator) Evaluate(s *session.Session, post *Summary) (unlocked []Rule, failed []RuleError) {
	for _, rule := range e.rules {
		if post.HasAchievement(rule.ID) {
			continue
		}

		fired, err := evaluateRule(rule, s, post)
		if err != nil {
			failed = append(failed, RuleError{RuleID: rule.ID, Err: err})
			continue
		}
		if fired {
			unlocked = append(unlocked, rule)
		}
	}
	return unlocked, failed
}

// evaluateRule isolates one predicate call so a panicking rule cannot take
// down the completion pipeline.
func evaluateRule(rule Rule, s *session.Session, post *Summary) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			fired = false
			err = fmt.Errorf("achievement rule %s panicked: %v", rule.ID, r)
		}
	}()

	if rule.Predicate == nil {
		return false, fmt.Errorf("achievement rule %s has no predicate", rule.ID)
	}
	return rule.Predicate(s, post), nil
}
