package progress

import (
	"context"
	"sort"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// LeaderboardEntry is one ranked row for an app's leaderboard.
type LeaderboardEntry struct {
	Rank          int
	UserID        shared.UserID
	BestScore     shared.Score
	XP            shared.XP
	Level         shared.Level
	TotalSessions int
}

// RankSummaries orders summaries into leaderboard entries: best score first,
// XP breaks ties. Users with equal best score and equal XP share relative
// order by user ID so repeated reads agree.
func RankSummaries(summaries []*Summary) []LeaderboardEntry {
	sorted := make([]*Summary, len(summaries))
	copy(sorted, summaries)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BestScore != sorted[j].BestScore {
			return sorted[i].BestScore > sorted[j].BestScore
		}
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:          i + 1,
			UserID:        s.UserID,
			BestScore:     s.BestScore,
			XP:            s.XP,
			Level:         s.Level,
			TotalSessions: s.TotalSessions,
		}
	}
	return entries
}

// LeaderboardCache caches ranked leaderboards per app. Implementations live
// in infrastructure; a nil cache simply forces the repository path.
type LeaderboardCache interface {
	// GetCachedTop returns up to limit cached entries for the app, or an
	// error if the cache has no fresh data.
	GetCachedTop(ctx context.Context, appID catalog.AppID, limit int) ([]LeaderboardEntry, error)

	// CacheTop replaces the cached leaderboard for the app.
	CacheTop(ctx context.Context, appID catalog.AppID, entries []LeaderboardEntry) error

	// Invalidate drops the cached leaderboard for the app.
	Invalidate(ctx context.Context, appID catalog.AppID) error
}
