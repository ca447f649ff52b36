package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO sessions (
			id, app_id, user_id, kind, status, scored, score, max_score,
			started_at, completed_at, duration_seconds, responses, interaction_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.Exec(ctx, query,
		string(s.ID),
		string(s.AppID),
		string(s.UserID),
		string(s.Kind),
		string(s.Status),
		s.Scored,
		s.Score.Int(),
		s.MaxScore.Int(),
		s.StartedAt,
		s.CompletedAt,
		int(s.Duration.Seconds()),
		s.Responses,
		s.InteractionData,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id session.ID) (*session.Session, error) {
	query := `
		SELECT id, app_id, user_id, kind, status, scored, score, max_score,
			   started_at, completed_at, duration_seconds, responses, interaction_data
		FROM sessions
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, string(id))
	s, err := scanSession(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Update persists lifecycle transitions on an existing session.
func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	query := `
		UPDATE sessions SET
			status = $1,
			scored = $2,
			score = $3,
			completed_at = $4,
			duration_seconds = $5,
			responses = $6,
			interaction_data = $7
		WHERE id = $8
	`

	result, err := r.conn.Exec(ctx, query,
		string(s.Status),
		s.Scored,
		s.Score.Int(),
		s.CompletedAt,
		int(s.Duration.Seconds()),
		s.Responses,
		s.InteractionData,
		string(s.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}

	return nil
}

// UpdateIf persists s only while the stored row still matches the expected
// status and scored flag. The guard runs inside the UPDATE itself, so
// exactly one of any set of racing writers commits.
func (r *SessionRepository) UpdateIf(ctx context.Context, s *session.Session, expected session.Status, expectedScored bool) error {
	query := `
		UPDATE sessions SET
			status = $1,
			scored = $2,
			score = $3,
			completed_at = $4,
			duration_seconds = $5,
			responses = $6,
			interaction_data = $7
		WHERE id = $8 AND status = $9 AND scored = $10
	`

	result, err := r.conn.Exec(ctx, query,
		string(s.Status),
		s.Scored,
		s.Score.Int(),
		s.CompletedAt,
		int(s.Duration.Seconds()),
		s.Responses,
		s.InteractionData,
		string(s.ID),
		string(expected),
		expectedScored,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing row from a lost race.
		var exists bool
		check := `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`
		if err := r.conn.QueryRow(ctx, check, string(s.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if !exists {
			return shared.ErrSessionNotFound
		}
		return shared.ErrSessionStateChanged
	}

	return nil
}

// HasCompleted reports whether the user has a completed session for the app.
func (r *SessionRepository) HasCompleted(ctx context.Context, appID string, userID shared.UserID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE app_id = $1 AND user_id = $2 AND status = $3
		)
	`

	var exists bool
	err := r.conn.QueryRow(ctx, query, appID, string(userID), string(session.StatusCompleted)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return exists, nil
}

// scanSession scans a single session row.
func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	var id, appID, userID, kind, status string
	var score, maxScore, durationSeconds int
	var completedAt *time.Time

	err := row.Scan(
		&id,
		&appID,
		&userID,
		&kind,
		&status,
		&s.Scored,
		&score,
		&maxScore,
		&s.StartedAt,
		&completedAt,
		&durationSeconds,
		&s.Responses,
		&s.InteractionData,
	)
	if err != nil {
		return nil, err
	}

	s.ID = session.ID(id)
	s.AppID = catalog.AppID(appID)
	s.UserID = shared.UserID(userID)
	s.Kind = session.Kind(kind)
	s.Status = session.Status(status)
	s.Score = shared.Score(score)
	s.MaxScore = shared.Score(maxScore)
	s.CompletedAt = completedAt
	s.Duration = time.Duration(durationSeconds) * time.Second
	return &s, nil
}
