package query

import (
	"context"
	"errors"
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Returns the progress summary snapshot for one (app, user) pair.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery contains the parameters for a progress read.
type GetProgressQuery struct {
	AppID  string
	UserID string
}

// Validate checks the query parameters.
func (q *GetProgressQuery) Validate() error {
	if q.AppID == "" {
		return errors.New("app_id is required")
	}
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// ProgressDTO is the externally visible progress snapshot.
type ProgressDTO struct {
	AppID         string    `json:"app_id"`
	UserID        string    `json:"user_id"`
	TotalSessions int       `json:"total_sessions"`
	TotalMinutes  int       `json:"total_minutes"`
	BestScore     int       `json:"best_score"`
	AverageScore  float64   `json:"average_score"`
	Level         int       `json:"level"`
	XP            int       `json:"xp"`
	Achievements  []string  `json:"achievements"`
	Streak        int       `json:"streak"`
	Mastery       string    `json:"mastery"`
	LastPlayedAt  time.Time `json:"last_played_at"`
}

// GetProgressResult contains the progress snapshot.
type GetProgressResult struct {
	Progress ProgressDTO `json:"progress"`
}

// GetProgressHandler handles progress reads.
type GetProgressHandler struct {
	progressRepo progress.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(progressRepo progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{progressRepo: progressRepo}
}

// Handle executes the progress query.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgress", shared.ErrValidation, err.Error(), err)
	}

	key := progress.Key{AppID: catalog.AppID(query.AppID), UserID: shared.UserID(query.UserID)}

	summary, err := h.progressRepo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return &GetProgressResult{Progress: ProgressDTOFromSummary(summary)}, nil
}

// ProgressDTOFromSummary converts a summary snapshot to its transport shape.
func ProgressDTOFromSummary(summary *progress.Summary) ProgressDTO {
	achievements := make([]string, len(summary.Achievements))
	for i, a := range summary.Achievements {
		achievements[i] = string(a)
	}

	return ProgressDTO{
		AppID:         string(summary.AppID),
		UserID:        string(summary.UserID),
		TotalSessions: summary.TotalSessions,
		TotalMinutes:  summary.TotalMinutes,
		BestScore:     summary.BestScore.Int(),
		AverageScore:  summary.AverageScore,
		Level:         summary.Level.Int(),
		XP:            summary.XP.Int(),
		Achievements:  achievements,
		Streak:        summary.Streak,
		Mastery:       string(summary.Mastery),
		LastPlayedAt:  summary.LastPlayedAt,
	}
}
