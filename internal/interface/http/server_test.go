package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/application/command"
	"github.com/thrivepath/practice-hub/internal/application/query"
	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/memory"
)

// noopBus drops all published events.
type noopBus struct{}

func (noopBus) Publish(shared.Event) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	sessions := memory.NewSessionRepository()
	catalogRepo := memory.NewCatalogRepository(sessions)
	progressRepo := memory.NewProgressRepository()
	recorder := memory.NewAnalyticsRecorder()
	bus := noopBus{}

	catalogRepo.Seed(
		&catalog.AppDefinition{
			ID: "breathing-basics", Name: "Breathing Basics",
			Kind: catalog.KindExercise, Difficulty: catalog.DifficultyBeginner,
			EstimatedDuration: 5 * time.Minute, MaxScore: 100, Active: true, Position: 1,
			PopularityScore: 80, ClinicalRating: 4.5, EvidenceBased: true,
		},
		&catalog.AppDefinition{
			ID: "retired-module", Name: "Retired",
			Kind: catalog.KindWorksheet, Difficulty: catalog.DifficultyBeginner,
			MaxScore: 100, Active: false, Position: 2,
		},
	)

	evaluator := progress.NewEvaluator(progress.DefaultRules())

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0 // exercised in its own test

	return NewServer(cfg, Dependencies{
		OpenSessionHandler:        command.NewOpenSessionHandler(catalogRepo, sessions, progressRepo, recorder, bus),
		CompleteSessionHandler:    command.NewCompleteSessionHandler(sessions, progressRepo, evaluator, recorder, bus, nil, 0),
		AbandonSessionHandler:     command.NewAbandonSessionHandler(sessions, recorder, bus),
		RecordInteractionHandler:  command.NewRecordInteractionHandler(sessions, recorder),
		GetProgressHandler:        query.NewGetProgressHandler(progressRepo),
		GetRecommendationsHandler: query.NewGetRecommendationsHandler(catalogRepo),
		GetLeaderboardHandler:     query.NewGetLeaderboardHandler(progressRepo, nil),
		CatalogRepo:               catalogRepo,
	})
}

// do runs one request through the full middleware chain.
func do(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors the standard JSON response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// openSession opens a session over HTTP and returns its ID.
func openSession(t *testing.T, s *Server) string {
	t.Helper()

	rec := do(s, http.MethodPost, "/api/v1/sessions", map[string]string{
		"app_id":  "breathing-basics",
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		SessionID string `json:"session_id"`
	}
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.SessionID)
	return data.SessionID
}

func TestServer_OpenSession(t *testing.T) {
	s := newTestServer(t)
	id := openSession(t, s)
	assert.NotEmpty(t, id)
}

func TestServer_CompleteSessionFlow(t *testing.T) {
	s := newTestServer(t)
	id := openSession(t, s)

	rec := do(s, http.MethodPost, "/api/v1/sessions/"+id+"/complete", map[string]interface{}{
		"user_id":   "user-1",
		"score":     100,
		"responses": map[string]string{"q1": "a"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var resp struct {
		SessionID string            `json:"session_id"`
		Progress  query.ProgressDTO `json:"progress"`
		Unlocked  []struct {
			ID string `json:"id"`
		} `json:"unlocked_achievements"`
		LevelUp *struct {
			OldLevel int `json:"old_level"`
			NewLevel int `json:"new_level"`
		} `json:"level_up"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, 1, resp.Progress.TotalSessions)
	assert.Equal(t, 100, resp.Progress.BestScore)
	assert.Len(t, resp.Unlocked, 2) // first completion and perfect score
	require.NotNil(t, resp.LevelUp)
	assert.Equal(t, 1, resp.LevelUp.OldLevel)

	// Progress is now readable.
	rec = do(s, http.MethodGet, "/api/v1/apps/breathing-basics/progress?user_id=user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// And the leaderboard has one row.
	rec = do(s, http.MethodGet, "/api/v1/apps/breathing-basics/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	var lb query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &lb))
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "user-1", lb.Entries[0].UserID)
}

func TestServer_CompleteTwiceConflicts(t *testing.T) {
	s := newTestServer(t)
	id := openSession(t, s)

	body := map[string]interface{}{"user_id": "user-1", "score": 50}
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/api/v1/sessions/"+id+"/complete", body).Code)

	rec := do(s, http.MethodPost, "/api/v1/sessions/"+id+"/complete", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "already_scored", env.Error.Code)
}

func TestServer_OpenSessionErrors(t *testing.T) {
	s := newTestServer(t)

	// Missing app_id is a validation error.
	rec := do(s, http.MethodPost, "/api/v1/sessions", map[string]string{"user_id": "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeEnvelope(t, rec).Error.Code)

	// Unknown app.
	rec = do(s, http.MethodPost, "/api/v1/sessions", map[string]string{"app_id": "nope", "user_id": "user-1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Inactive app is an invalid-state conflict.
	rec = do(s, http.MethodPost, "/api/v1/sessions", map[string]string{"app_id": "retired-module", "user_id": "user-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed JSON body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("{broken"))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_AbandonSession(t *testing.T) {
	s := newTestServer(t)
	id := openSession(t, s)

	rec := do(s, http.MethodPost, "/api/v1/sessions/"+id+"/abandon", map[string]string{"user_id": "user-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Abandoned sessions cannot be completed.
	rec = do(s, http.MethodPost, "/api/v1/sessions/"+id+"/complete", map[string]interface{}{
		"user_id": "user-1", "score": 10,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_RecordInteraction(t *testing.T) {
	s := newTestServer(t)
	id := openSession(t, s)

	rec := do(s, http.MethodPost, "/api/v1/sessions/"+id+"/interactions", map[string]interface{}{
		"user_id": "user-1",
		"payload": map[string]int{"step": 1},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_ListApps(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/v1/apps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var data struct {
		Apps []appDTO `json:"apps"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	// Only active entries are listed.
	require.Len(t, data.Apps, 1)
	assert.Equal(t, "breathing-basics", data.Apps[0].ID)
	assert.Equal(t, 5, data.Apps[0].EstimatedDurationMinutes)
}

func TestServer_Recommendations(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/v1/recommendations?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var res query.GetRecommendationsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "breathing-basics", res.Entries[0].AppID)

	// Missing user_id is a validation error.
	rec = do(s, http.MethodGet, "/api/v1/recommendations", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ProgressNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/v1/apps/breathing-basics/progress?user_id=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/live", nil).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/", nil).Code)
}

func TestServer_UnknownPath(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, http.MethodGet, "/definitely-not-a-route", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RequestIDPropagates(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "trace-me", rec.Header().Get("X-Request-ID"))
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t)
	s.rateLimiter = newRateLimiter(2, time.Minute)
	handler := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
