package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// UpdateAtomic uses optimistic concurrency on the version column: read the
// row, run the mutation on a copy, then UPDATE ... WHERE version matches.
// A lost race bumps nothing and retries with backoff; exhausted retries
// surface as shared.ErrProgressContention.
// ══════════════════════════════════════════════════════════════════════════════

// errVersionConflict signals one lost optimistic round inside UpdateAtomic.
var errVersionConflict = errors.New("postgres: progress version conflict")

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection, maxAttempts int) *ProgressRepository {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &ProgressRepository{
		conn: conn,
		retrier: retry.New(
			retry.WithMaxAttempts(maxAttempts),
			retry.WithInitialDelay(5*time.Millisecond),
			retry.WithMaxDelay(250*time.Millisecond),
		),
	}
}

const summaryColumns = `app_id, user_id, total_sessions, total_minutes, best_score,
	   average_score, level, xp, achievements, streak, last_played_at, mastery, version`

// Ensure creates the all-zero summary for the key if it does not exist.
func (r *ProgressRepository) Ensure(ctx context.Context, key progress.Key) error {
	query := `
		INSERT INTO progress_summaries (app_id, user_id, level, mastery)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (app_id, user_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		string(key.AppID),
		string(key.UserID),
		shared.MinLevel.Int(),
		string(progress.TierNovice),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure progress summary: %w", err)
	}
	return nil
}

// Get returns a snapshot of the summary for the key.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Summary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM progress_summaries
		WHERE app_id = $1 AND user_id = $2
	`

	row := r.conn.QueryRow(ctx, query, string(key.AppID), string(key.UserID))
	summary, err := scanSummary(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress summary: %w", err)
	}
	return summary, nil
}

// UpdateAtomic applies fn under optimistic concurrency with bounded retries.
func (r *ProgressRepository) UpdateAtomic(ctx context.Context, key progress.Key, fn func(*progress.Summary) error) (*progress.Summary, error) {
	var updated *progress.Summary

	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		current, err := r.Get(ctx, key)
		if err != nil {
			return retry.Permanent(err)
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return retry.Permanent(err)
		}

		if err := r.commitVersioned(ctx, next, current.Version); err != nil {
			if errors.Is(err, errVersionConflict) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}

		next.Version = current.Version + 1
		updated = next
		return nil
	})
	if err != nil {
		if errors.Is(err, errVersionConflict) {
			return nil, shared.ErrProgressContention
		}
		return nil, err
	}

	return updated, nil
}

// commitVersioned writes the mutated summary iff the version is untouched.
func (r *ProgressRepository) commitVersioned(ctx context.Context, s *progress.Summary, expectedVersion int64) error {
	query := `
		UPDATE progress_summaries SET
			total_sessions = $1,
			total_minutes = $2,
			best_score = $3,
			average_score = $4,
			level = $5,
			xp = $6,
			achievements = $7,
			streak = $8,
			last_played_at = $9,
			mastery = $10,
			version = version + 1
		WHERE app_id = $11 AND user_id = $12 AND version = $13
	`

	achievements := make([]string, len(s.Achievements))
	for i, a := range s.Achievements {
		achievements[i] = string(a)
	}

	var lastPlayedAt *time.Time
	if !s.LastPlayedAt.IsZero() {
		lastPlayedAt = &s.LastPlayedAt
	}

	result, err := r.conn.Exec(ctx, query,
		s.TotalSessions,
		s.TotalMinutes,
		s.BestScore.Int(),
		s.AverageScore,
		s.Level.Int(),
		s.XP.Int(),
		achievements,
		s.Streak,
		lastPlayedAt,
		string(s.Mastery),
		string(s.AppID),
		string(s.UserID),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress summary: %w", err)
	}

	if result.RowsAffected() == 0 {
		return errVersionConflict
	}
	return nil
}

// GetByApp returns snapshots of all summaries for one app.
func (r *ProgressRepository) GetByApp(ctx context.Context, appID catalog.AppID) ([]*progress.Summary, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM progress_summaries
		WHERE app_id = $1
	`

	rows, err := r.conn.Query(ctx, query, string(appID))
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*progress.Summary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// scanSummary scans a single summary row.
func scanSummary(row pgx.Row) (*progress.Summary, error) {
	var s progress.Summary
	var appID, userID, mastery string
	var bestScore, level, xp int
	var achievements []string
	var lastPlayedAt *time.Time

	err := row.Scan(
		&appID,
		&userID,
		&s.TotalSessions,
		&s.TotalMinutes,
		&bestScore,
		&s.AverageScore,
		&level,
		&xp,
		&achievements,
		&s.Streak,
		&lastPlayedAt,
		&mastery,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.AppID = catalog.AppID(appID)
	s.UserID = shared.UserID(userID)
	s.BestScore = shared.Score(bestScore)
	s.Level = shared.Level(level)
	s.XP = shared.XP(xp)
	s.Mastery = progress.Tier(mastery)
	if lastPlayedAt != nil {
		s.LastPlayedAt = *lastPlayedAt
	}

	s.Achievements = make([]progress.AchievementID, len(achievements))
	for i, a := range achievements {
		s.Achievements[i] = progress.AchievementID(a)
	}
	return &s, nil
}
