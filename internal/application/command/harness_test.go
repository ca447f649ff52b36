package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/memory"
)

// captureBus collects published events so tests can assert on them.
type captureBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) byType(t shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// harness wires the command handlers against the in-memory stores.
type harness struct {
	sessions *memory.SessionRepository
	catalog  *memory.CatalogRepository
	progress *memory.ProgressRepository
	recorder *memory.AnalyticsRecorder
	bus      *captureBus

	open     *OpenSessionHandler
	complete *CompleteSessionHandler
	abandon  *AbandonSessionHandler
	interact *RecordInteractionHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sessions := memory.NewSessionRepository()
	catalogRepo := memory.NewCatalogRepository(sessions)
	progressRepo := memory.NewProgressRepository()
	recorder := memory.NewAnalyticsRecorder()
	bus := &captureBus{}

	catalogRepo.Seed(
		&catalog.AppDefinition{
			ID:              "breathing-basics",
			Name:            "Breathing Basics",
			Kind:            catalog.KindExercise,
			Difficulty:      catalog.DifficultyBeginner,
			MaxScore:        100,
			Active:          true,
			Position:        1,
			PopularityScore: 80,
			ClinicalRating:  4.5,
			EvidenceBased:   true,
		},
		&catalog.AppDefinition{
			ID:         "retired-module",
			Name:       "Retired Module",
			Kind:       catalog.KindWorksheet,
			Difficulty: catalog.DifficultyBeginner,
			MaxScore:   100,
			Active:     false,
			Position:   2,
		},
	)

	evaluator := progress.NewEvaluator(progress.DefaultRules())

	return &harness{
		sessions: sessions,
		catalog:  catalogRepo,
		progress: progressRepo,
		recorder: recorder,
		bus:      bus,

		open:     NewOpenSessionHandler(catalogRepo, sessions, progressRepo, recorder, bus),
		complete: NewCompleteSessionHandler(sessions, progressRepo, evaluator, recorder, bus, nil, 0),
		abandon:  NewAbandonSessionHandler(sessions, recorder, bus),
		interact: NewRecordInteractionHandler(sessions, recorder),
	}
}

// openSession opens one session and returns its ID.
func (h *harness) openSession(t *testing.T, userID string) string {
	t.Helper()

	res, err := h.open.Handle(context.Background(), OpenSessionCommand{
		AppID:     "breathing-basics",
		UserID:    userID,
		StartedAt: time.Now().Add(-10 * time.Minute),
	})
	require.NoError(t, err)
	return res.SessionID
}
