package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/thrivepath/practice-hub/internal/application/command"
	"github.com/thrivepath/practice-hub/internal/application/query"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	info := map[string]interface{}{
		"name":        "Practice Hub API",
		"version":     "v1",
		"description": "Gamified practice engine: sessions, progress, achievements, leaderboards",
		"endpoints": map[string]string{
			"health":          "/health",
			"sessions":        "/api/v1/sessions",
			"apps":            "/api/v1/apps",
			"progress":        "/api/v1/apps/{id}/progress",
			"leaderboard":     "/api/v1/apps/{id}/leaderboard",
			"recommendations": "/api/v1/recommendations",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type openSessionRequest struct {
	AppID     string     `json:"app_id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// handleOpenSession handles POST /api/v1/sessions
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.OpenSessionCommand{
		AppID:         req.AppID,
		UserID:        req.UserID,
		Kind:          req.Kind,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.StartedAt != nil {
		cmd.StartedAt = *req.StartedAt
	}

	result, err := s.deps.OpenSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to open session")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type completeSessionRequest struct {
	UserID          string          `json:"user_id"`
	Score           int             `json:"score"`
	Responses       json.RawMessage `json:"responses,omitempty"`
	InteractionData json.RawMessage `json:"interaction_data,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

type completeSessionResponse struct {
	SessionID string              `json:"session_id"`
	Progress  query.ProgressDTO   `json:"progress"`
	Unlocked  []unlockedDTO       `json:"unlocked_achievements"`
	LevelUp   *levelTransitionDTO `json:"level_up,omitempty"`
}

type unlockedDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RewardXP int    `json:"reward_xp"`
}

type levelTransitionDTO struct {
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.CompleteSessionCommand{
		SessionID:       r.PathValue("id"),
		UserID:          req.UserID,
		Score:           req.Score,
		Responses:       req.Responses,
		InteractionData: req.InteractionData,
		CorrelationID:   getRequestID(r.Context()),
	}
	if req.CompletedAt != nil {
		cmd.CompletedAt = *req.CompletedAt
	}

	result, err := s.deps.CompleteSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to complete session")
		return
	}

	resp := completeSessionResponse{
		SessionID: result.SessionID,
		Progress:  query.ProgressDTOFromSummary(result.Summary),
		Unlocked:  make([]unlockedDTO, 0, len(result.Unlocked)),
	}
	for _, u := range result.Unlocked {
		resp.Unlocked = append(resp.Unlocked, unlockedDTO{ID: u.ID, Name: u.Name, RewardXP: u.RewardXP})
	}
	if result.LeveledUp {
		resp.LevelUp = &levelTransitionDTO{OldLevel: result.OldLevel, NewLevel: result.NewLevel}
	}

	writeJSON(w, http.StatusOK, resp)
}

type abandonSessionRequest struct {
	UserID      string     `json:"user_id"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`
}

// handleAbandonSession handles POST /api/v1/sessions/{id}/abandon
func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	var req abandonSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.AbandonSessionCommand{
		SessionID:     r.PathValue("id"),
		UserID:        req.UserID,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.AbandonedAt != nil {
		cmd.AbandonedAt = *req.AbandonedAt
	}

	result, err := s.deps.AbandonSessionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to abandon session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": result.SessionID,
		"status":     result.Status,
	})
}

type recordInteractionRequest struct {
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
}

// handleRecordInteraction handles POST /api/v1/sessions/{id}/interactions
func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req recordInteractionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.RecordInteractionCommand{
		SessionID: r.PathValue("id"),
		UserID:    req.UserID,
		Payload:   req.Payload,
	}
	if req.OccurredAt != nil {
		cmd.OccurredAt = *req.OccurredAt
	}

	result, err := s.deps.RecordInteractionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record interaction")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event_id":    result.EventID,
		"recorded_at": result.RecordedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type appDTO struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	Kind                     string  `json:"kind"`
	Difficulty               string  `json:"difficulty"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EvidenceBased            bool    `json:"evidence_based"`
	MaxScore                 int     `json:"max_score"`
	ClinicalRating           float64 `json:"clinical_rating"`
}

// handleListApps handles GET /api/v1/apps
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.deps.CatalogRepo.GetActive(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list apps")
		return
	}

	out := make([]appDTO, 0, len(apps))
	for _, app := range apps {
		out = append(out, appDTO{
			ID:                       string(app.ID),
			Name:                     app.Name,
			Kind:                     string(app.Kind),
			Difficulty:               string(app.Difficulty),
			EstimatedDurationMinutes: int(app.EstimatedDuration.Minutes()),
			EvidenceBased:            app.EvidenceBased,
			MaxScore:                 app.MaxScore.Int(),
			ClinicalRating:           app.ClinicalRating,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"apps": out})
}

// handleGetProgress handles GET /api/v1/apps/{id}/progress?user_id=...
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	q := query.GetProgressQuery{
		AppID:  r.PathValue("id"),
		UserID: getQueryParam(r, "user_id", ""),
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetLeaderboard handles GET /api/v1/apps/{id}/leaderboard?limit=...
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := query.GetLeaderboardQuery{
		AppID: r.PathValue("id"),
		Limit: getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetRecommendations handles GET /api/v1/recommendations?user_id=...&limit=...
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := query.GetRecommendationsQuery{
		UserID: getQueryParam(r, "user_id", ""),
		Limit:  getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetRecommendationsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get recommendations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError translates domain errors into HTTP status codes.
// Not-found maps to 404, invalid state to 409, exhausted update retries to
// 503 with Retry-After, validation to 400.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrSessionAlreadyScored):
		writeJSONError(w, http.StatusConflict, "already_scored", "Session has already been scored")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsContention(err):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "contention", "Progress update contention, retry the request")
	case shared.IsInvalidState(err):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		s.logger.Error(msg,
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return false
	}
	return true
}
