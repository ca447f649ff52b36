// Package memory provides in-memory repository implementations. They back
// the dev-mode server and the application-layer tests, and honor the same
// contracts as the postgres package, including per-key atomicity on progress
// updates.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// CatalogRepository is an in-memory catalog.Repository.
type CatalogRepository struct {
	mu   sync.RWMutex
	apps map[catalog.AppID]*catalog.AppDefinition

	// sessions supplies the completion set for GetActiveNotCompletedBy.
	// Optional; when nil the exclusion set is empty.
	sessions *SessionRepository
}

// NewCatalogRepository creates an empty in-memory catalog.
func NewCatalogRepository(sessions *SessionRepository) *CatalogRepository {
	return &CatalogRepository{
		apps:     make(map[catalog.AppID]*catalog.AppDefinition),
		sessions: sessions,
	}
}

// Seed inserts or replaces catalog entries. Intended for dev-mode startup
// and tests.
func (r *CatalogRepository) Seed(apps ...*catalog.AppDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, app := range apps {
		cp := *app
		r.apps[app.ID] = &cp
	}
}

// GetByID returns a catalog entry by ID.
func (r *CatalogRepository) GetByID(ctx context.Context, id catalog.AppID) (*catalog.AppDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[id]
	if !ok {
		return nil, shared.ErrAppNotFound
	}

	cp := *app
	return &cp, nil
}

// GetActive returns all active entries in Position order.
func (r *CatalogRepository) GetActive(ctx context.Context) ([]*catalog.AppDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.activeLocked(nil), nil
}

// GetActiveNotCompletedBy returns active entries the user has not completed.
// Both maps are read under this repository's lock, which is as close to a
// single snapshot as the in-memory backend gets.
func (r *CatalogRepository) GetActiveNotCompletedBy(ctx context.Context, userID shared.UserID) ([]*catalog.AppDefinition, error) {
	completed := make(map[catalog.AppID]struct{})
	if r.sessions != nil {
		completed = r.sessions.completedApps(userID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.activeLocked(completed), nil
}

func (r *CatalogRepository) activeLocked(exclude map[catalog.AppID]struct{}) []*catalog.AppDefinition {
	out := make([]*catalog.AppDefinition, 0, len(r.apps))
	for _, app := range r.apps {
		if !app.Active {
			continue
		}
		if _, done := exclude[app.ID]; done {
			continue
		}
		cp := *app
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})

	return out
}

var _ catalog.Repository = (*CatalogRepository)(nil)
var _ session.Repository = (*SessionRepository)(nil)
