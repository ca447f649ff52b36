package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/memory"
)

func seedCatalog(t *testing.T) (*memory.CatalogRepository, *memory.SessionRepository) {
	t.Helper()

	sessions := memory.NewSessionRepository()
	repo := memory.NewCatalogRepository(sessions)
	repo.Seed(
		&catalog.AppDefinition{
			ID: "breathing-basics", Name: "Breathing Basics",
			Kind: catalog.KindExercise, Difficulty: catalog.DifficultyBeginner,
			EstimatedDuration: 5 * time.Minute, MaxScore: 100, Active: true, Position: 1,
			PopularityScore: 80, ClinicalRating: 4.5, EvidenceBased: true,
		},
		&catalog.AppDefinition{
			ID: "thought-record", Name: "Thought Record",
			Kind: catalog.KindWorksheet, Difficulty: catalog.DifficultyIntermediate,
			EstimatedDuration: 15 * time.Minute, MaxScore: 100, Active: true, Position: 2,
			PopularityScore: 65, ClinicalRating: 4.8, EvidenceBased: true,
		},
		&catalog.AppDefinition{
			ID: "mood-check", Name: "Mood Check",
			Kind: catalog.KindAssessment, Difficulty: catalog.DifficultyBeginner,
			EstimatedDuration: 3 * time.Minute, MaxScore: 50, Active: true, Position: 3,
			PopularityScore: 90, ClinicalRating: 3.9,
		},
		&catalog.AppDefinition{
			ID: "retired-module", Name: "Retired",
			Kind: catalog.KindWorksheet, Difficulty: catalog.DifficultyBeginner,
			MaxScore: 100, Active: false, Position: 4,
			PopularityScore: 100, ClinicalRating: 5, EvidenceBased: true,
		},
	)
	return repo, sessions
}

// completeApp stores one completed session so the app drops out of the
// candidate set.
func completeApp(t *testing.T, sessions *memory.SessionRepository, appID, userID string) {
	t.Helper()

	ctx := context.Background()
	s, err := session.New(session.ID("done-"+appID+"-"+userID), catalog.AppID(appID),
		shared.UserID(userID), session.KindPlay, 100, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Complete(50, nil, nil, time.Now()))
	require.NoError(t, sessions.Create(ctx, s))
}

func TestGetRecommendations_RanksByWeight(t *testing.T) {
	repo, _ := seedCatalog(t)
	h := NewGetRecommendationsHandler(repo)

	res, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-1"})
	require.NoError(t, err)

	// Weights: thought-record 140.5, breathing-basics 139, mood-check 105.
	// The inactive entry never appears.
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "thought-record", res.Entries[0].AppID)
	assert.Equal(t, "breathing-basics", res.Entries[1].AppID)
	assert.Equal(t, "mood-check", res.Entries[2].AppID)

	assert.InDelta(t, 140.5, res.Entries[0].Score, 0.001)
	assert.InDelta(t, 139.0, res.Entries[1].Score, 0.001)
	assert.InDelta(t, 105.0, res.Entries[2].Score, 0.001)
}

func TestGetRecommendations_ExcludesCompletedApps(t *testing.T) {
	repo, sessions := seedCatalog(t)
	completeApp(t, sessions, "thought-record", "user-1")

	h := NewGetRecommendationsHandler(repo)

	res, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "breathing-basics", res.Entries[0].AppID)
	assert.Equal(t, "mood-check", res.Entries[1].AppID)

	// Another user's view is unaffected.
	other, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, other.Entries, 3)
}

func TestGetRecommendations_TiesKeepCatalogOrder(t *testing.T) {
	sessions := memory.NewSessionRepository()
	repo := memory.NewCatalogRepository(sessions)
	repo.Seed(
		&catalog.AppDefinition{
			ID: "second", Name: "Second", Kind: catalog.KindExercise,
			Difficulty: catalog.DifficultyBeginner, MaxScore: 100, Active: true, Position: 2,
			PopularityScore: 50, ClinicalRating: 4,
		},
		&catalog.AppDefinition{
			ID: "first", Name: "First", Kind: catalog.KindExercise,
			Difficulty: catalog.DifficultyBeginner, MaxScore: 100, Active: true, Position: 1,
			PopularityScore: 50, ClinicalRating: 4,
		},
	)
	h := NewGetRecommendationsHandler(repo)

	res, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "first", res.Entries[0].AppID)
	assert.Equal(t, "second", res.Entries[1].AppID)
}

func TestGetRecommendations_Limit(t *testing.T) {
	repo, _ := seedCatalog(t)
	h := NewGetRecommendationsHandler(repo)

	res, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-1", Limit: 1})
	require.NoError(t, err)

	require.Len(t, res.Entries, 1)
	assert.Equal(t, "thought-record", res.Entries[0].AppID)
}

// failingCatalogRepo simulates a storage outage on the candidate read.
type failingCatalogRepo struct {
	*memory.CatalogRepository
	err error
}

func (r *failingCatalogRepo) GetActiveNotCompletedBy(ctx context.Context, userID shared.UserID) ([]*catalog.AppDefinition, error) {
	return nil, r.err
}

func TestGetRecommendations_StorageFailureIsNotNotFound(t *testing.T) {
	repo, _ := seedCatalog(t)
	dbErr := errors.New("connection refused")
	h := NewGetRecommendationsHandler(&failingCatalogRepo{repo, dbErr})

	_, err := h.Handle(context.Background(), GetRecommendationsQuery{UserID: "user-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, shared.IsNotFound(err))
}

func TestGetRecommendations_Validation(t *testing.T) {
	repo, _ := seedCatalog(t)
	h := NewGetRecommendationsHandler(repo)

	_, err := h.Handle(context.Background(), GetRecommendationsQuery{})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), GetRecommendationsQuery{UserID: "u", Limit: -1})
	assert.Error(t, err)
}
