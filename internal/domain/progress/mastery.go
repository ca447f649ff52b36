package progress

import (
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// Tier is the derived mastery tier summarizing cumulative skill and
// engagement for one (app, user) pair.
type Tier string

const (
	TierNovice       Tier = "novice"
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
	TierExpert       Tier = "expert"
)

// IsValid checks if the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierNovice, TierBeginner, TierIntermediate, TierAdvanced, TierExpert:
		return true
	default:
		return false
	}
}

// Rank returns the tier's ordinal for ordering comparisons.
func (t Tier) Rank() int {
	switch t {
	case TierBeginner:
		return 1
	case TierIntermediate:
		return 2
	case TierAdvanced:
		return 3
	case TierExpert:
		return 4
	default:
		return 0
	}
}

// tierThreshold is one row of the fixed tier table. A tier is reached when
// either the XP or the session requirement is met.
type tierThreshold struct {
	tier     Tier
	minXP    shared.XP
	sessions int
}

// tierTable is ordered from highest to lowest so TierFor can return the
// first row that matches. The table is fixed; mastery is never hand-edited.
var tierTable = []tierThreshold{
	{TierExpert, 5000, 50},
	{TierAdvanced, 2000, 25},
	{TierIntermediate, 500, 10},
	{TierBeginner, 100, 3},
}

// TierFor computes the mastery tier as a pure, deterministic function of
// experience points and completed sessions.
func TierFor(xp shared.XP, totalSessions int) Tier {
	for _, row := range tierTable {
		if xp >= row.minXP || totalSessions >= row.sessions {
			return row.tier
		}
	}
	return TierNovice
}
