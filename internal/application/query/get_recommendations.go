// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS QUERY
// Ranks active catalog apps the user has not yet completed. The score blends
// popularity, clinical rating, and an evidence-base bonus; ties keep the
// catalog's own ordering.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecommendationLimit caps the result when the query asks for zero.
const DefaultRecommendationLimit = 10

// GetRecommendationsQuery contains the parameters for recommendations.
type GetRecommendationsQuery struct {
	// UserID is the user to recommend for.
	UserID string

	// Limit is the maximum number of entries (default 10).
	Limit int
}

// Validate checks the query parameters.
func (q *GetRecommendationsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultRecommendationLimit
	}
	return nil
}

// RecommendationDTO is one recommended catalog entry.
type RecommendationDTO struct {
	AppID                    string  `json:"app_id"`
	Name                     string  `json:"name"`
	Kind                     string  `json:"kind"`
	Difficulty               string  `json:"difficulty"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EvidenceBased            bool    `json:"evidence_based"`
	Score                    float64 `json:"score"`
}

// GetRecommendationsResult contains the ranked recommendations.
type GetRecommendationsResult struct {
	UserID      string              `json:"user_id"`
	Entries     []RecommendationDTO `json:"entries"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// GetRecommendationsHandler handles recommendation queries.
type GetRecommendationsHandler struct {
	catalogRepo catalog.Repository
}

// NewGetRecommendationsHandler creates a new GetRecommendationsHandler.
func NewGetRecommendationsHandler(catalogRepo catalog.Repository) *GetRecommendationsHandler {
	return &GetRecommendationsHandler{catalogRepo: catalogRepo}
}

// Handle executes the recommendations query.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, query GetRecommendationsQuery) (*GetRecommendationsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetRecommendations", shared.ErrValidation, err.Error(), err)
	}

	// Candidates: active apps with no completed session by this user, read
	// under one snapshot so a concurrent completion cannot split the set.
	candidates, err := h.catalogRepo.GetActiveNotCompletedBy(ctx, shared.UserID(query.UserID))
	if err != nil {
		return nil, fmt.Errorf("get_recommendations: failed to load candidates: %w", err)
	}

	ranked := rankCandidates(candidates)

	if len(ranked) > query.Limit {
		ranked = ranked[:query.Limit]
	}

	entries := make([]RecommendationDTO, len(ranked))
	for i, app := range ranked {
		entries[i] = RecommendationDTO{
			AppID:                    string(app.ID),
			Name:                     app.Name,
			Kind:                     string(app.Kind),
			Difficulty:               string(app.Difficulty),
			EstimatedDurationMinutes: int(app.EstimatedDuration.Minutes()),
			EvidenceBased:            app.EvidenceBased,
			Score:                    app.RecommendationWeight(),
		}
	}

	return &GetRecommendationsResult{
		UserID:      query.UserID,
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// rankCandidates orders candidates by recommendation weight, highest first.
// The sort is stable and the input arrives in catalog Position order, so
// equal weights keep that order deterministically.
func rankCandidates(apps []*catalog.AppDefinition) []*catalog.AppDefinition {
	ranked := make([]*catalog.AppDefinition, len(apps))
	copy(ranked, apps)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RecommendationWeight() > ranked[j].RecommendationWeight()
	})

	return ranked
}
