package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks users for one app by best score, XP as the tiebreaker. Reads through
// an optional cache; cache misses fall back to the summaries and refill it.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLeaderboardLimit caps the result when the query asks for zero.
const DefaultLeaderboardLimit = 10

// GetLeaderboardQuery contains the parameters for a leaderboard read.
type GetLeaderboardQuery struct {
	// AppID is the app to rank users for.
	AppID string

	// Limit is the maximum number of entries (default 10).
	Limit int
}

// Validate checks the query parameters.
func (q *GetLeaderboardQuery) Validate() error {
	if q.AppID == "" {
		return errors.New("app_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLeaderboardLimit
	}
	return nil
}

// LeaderboardEntryDTO is one ranked leaderboard row.
type LeaderboardEntryDTO struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	BestScore     int    `json:"best_score"`
	XP            int    `json:"xp"`
	Level         int    `json:"level"`
	TotalSessions int    `json:"total_sessions"`
}

// GetLeaderboardResult contains the ranked leaderboard.
type GetLeaderboardResult struct {
	AppID       string                `json:"app_id"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	progressRepo     progress.Repository
	leaderboardCache progress.LeaderboardCache
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
// The cache may be nil; reads then always hit the repository.
func NewGetLeaderboardHandler(
	progressRepo progress.Repository,
	leaderboardCache progress.LeaderboardCache,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		progressRepo:     progressRepo,
		leaderboardCache: leaderboardCache,
	}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	appID := catalog.AppID(query.AppID)

	if h.leaderboardCache != nil {
		cached, err := h.leaderboardCache.GetCachedTop(ctx, appID, query.Limit)
		if err == nil && len(cached) > 0 {
			return h.buildResult(query.AppID, cached, query.Limit), nil
		}
	}

	summaries, err := h.progressRepo.GetByApp(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to load summaries: %w", err)
	}

	entries := progress.RankSummaries(summaries)

	if h.leaderboardCache != nil {
		// Refill on miss; a failed refill never fails the read.
		_ = h.leaderboardCache.CacheTop(ctx, appID, entries)
	}

	return h.buildResult(query.AppID, entries, query.Limit), nil
}

// buildResult truncates to the limit and converts to DTOs.
func (h *GetLeaderboardHandler) buildResult(appID string, entries []progress.LeaderboardEntry, limit int) *GetLeaderboardResult {
	if len(entries) > limit {
		entries = entries[:limit]
	}

	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{
			Rank:          e.Rank,
			UserID:        string(e.UserID),
			BestScore:     e.BestScore.Int(),
			XP:            e.XP.Int(),
			Level:         e.Level.Int(),
			TotalSessions: e.TotalSessions,
		}
	}

	return &GetLeaderboardResult{
		AppID:       appID,
		Entries:     dtos,
		GeneratedAt: time.Now().UTC(),
	}
}
