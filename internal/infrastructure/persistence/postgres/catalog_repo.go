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
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements catalog.Repository for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

const appColumns = `id, name, kind, difficulty, estimated_duration, evidence_based,
	   max_score, popularity_score, clinical_rating, active, position`

// GetByID returns a catalog entry by ID.
func (r *CatalogRepository) GetByID(ctx context.Context, id catalog.AppID) (*catalog.AppDefinition, error) {
	query := `
		SELECT ` + appColumns + `
		FROM app_definitions
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, string(id))
	app, err := scanApp(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return app, nil
}

// GetActive returns all active catalog entries in position order.
func (r *CatalogRepository) GetActive(ctx context.Context) ([]*catalog.AppDefinition, error) {
	query := `
		SELECT ` + appColumns + `
		FROM app_definitions
		WHERE active
		ORDER BY position, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active apps: %w", err)
	}
	defer rows.Close()

	return scanApps(rows)
}

// GetActiveNotCompletedBy returns active entries the user has no completed
// session for. A repeatable-read transaction keeps the catalog read and the
// completion-set read on one snapshot.
func (r *CatalogRepository) GetActiveNotCompletedBy(ctx context.Context, userID shared.UserID) ([]*catalog.AppDefinition, error) {
	query := `
		SELECT ` + appColumns + `
		FROM app_definitions a
		WHERE a.active
		  AND NOT EXISTS (
			SELECT 1 FROM sessions s
			WHERE s.app_id = a.id
			  AND s.user_id = $1
			  AND s.status = $2
		  )
		ORDER BY a.position, a.id
	`

	var apps []*catalog.AppDefinition
	err := r.conn.WithTx(ctx, RepeatableReadTxOptions(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, string(userID), string(session.StatusCompleted))
		if err != nil {
			return fmt.Errorf("failed to query candidates: %w", err)
		}
		defer rows.Close()

		apps, err = scanApps(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// Upsert inserts or replaces a catalog entry. Used by catalog seeding.
func (r *CatalogRepository) Upsert(ctx context.Context, app *catalog.AppDefinition) error {
	if err := app.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO app_definitions (
			id, name, kind, difficulty, estimated_duration, evidence_based,
			max_score, popularity_score, clinical_rating, active, position, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			difficulty = EXCLUDED.difficulty,
			estimated_duration = EXCLUDED.estimated_duration,
			evidence_based = EXCLUDED.evidence_based,
			max_score = EXCLUDED.max_score,
			popularity_score = EXCLUDED.popularity_score,
			clinical_rating = EXCLUDED.clinical_rating,
			active = EXCLUDED.active,
			position = EXCLUDED.position,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query,
		string(app.ID),
		app.Name,
		string(app.Kind),
		string(app.Difficulty),
		int(app.EstimatedDuration.Seconds()),
		app.EvidenceBased,
		app.MaxScore.Int(),
		app.PopularityScore,
		app.ClinicalRating,
		app.Active,
		app.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert app: %w", err)
	}
	return nil
}

// scanApp scans a single app row.
func scanApp(row pgx.Row) (*catalog.AppDefinition, error) {
	var app catalog.AppDefinition
	var id, kind, difficulty string
	var maxScore, durationSeconds int

	err := row.Scan(
		&id,
		&app.Name,
		&kind,
		&difficulty,
		&durationSeconds,
		&app.EvidenceBased,
		&maxScore,
		&app.PopularityScore,
		&app.ClinicalRating,
		&app.Active,
		&app.Position,
	)
	if err != nil {
		return nil, err
	}

	app.ID = catalog.AppID(id)
	app.Kind = catalog.Kind(kind)
	app.Difficulty = catalog.Difficulty(difficulty)
	app.EstimatedDuration = time.Duration(durationSeconds) * time.Second
	app.MaxScore = shared.Score(maxScore)
	return &app, nil
}

// scanApps scans all app rows.
func scanApps(rows pgx.Rows) ([]*catalog.AppDefinition, error) {
	apps := make([]*catalog.AppDefinition, 0)
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app row: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
