package memory

import (
	"context"
	"sync"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// ProgressRepository is an in-memory progress.Repository. Atomicity is
// provided by a per-key mutex held for the whole read-modify-write, so
// unlike the postgres implementation it never reports contention.
type ProgressRepository struct {
	mu        sync.RWMutex
	summaries map[progress.Key]*progress.Summary
	locks     map[progress.Key]*sync.Mutex
}

// NewProgressRepository creates an empty in-memory progress store.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{
		summaries: make(map[progress.Key]*progress.Summary),
		locks:     make(map[progress.Key]*sync.Mutex),
	}
}

// Ensure creates the all-zero summary for the key if it does not exist.
func (r *ProgressRepository) Ensure(ctx context.Context, key progress.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.summaries[key]; !exists {
		r.summaries[key] = progress.NewSummary(key)
	}

	return nil
}

// Get returns a snapshot of the summary for the key.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.summaries[key]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}

	return s.Clone(), nil
}

// UpdateAtomic applies fn under the key's lock.
func (r *ProgressRepository) UpdateAtomic(ctx context.Context, key progress.Key, fn func(*progress.Summary) error) (*progress.Summary, error) {
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current, ok := r.summaries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, shared.ErrProgressNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	r.mu.Lock()
	r.summaries[key] = next
	r.mu.Unlock()

	return next.Clone(), nil
}

// GetByApp returns snapshots of all summaries for one app.
func (r *ProgressRepository) GetByApp(ctx context.Context, appID catalog.AppID) ([]*progress.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*progress.Summary, 0)
	for key, s := range r.summaries {
		if key.AppID == appID {
			out = append(out, s.Clone())
		}
	}

	return out, nil
}

// keyLock returns the mutex guarding updates for one key, creating it on
// first use.
func (r *ProgressRepository) keyLock(key progress.Key) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}

	return lock
}

var _ progress.Repository = (*ProgressRepository)(nil)
