package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

func TestProgressRepository_EnsureAndGet(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()
	key := progress.Key{AppID: "app", UserID: "u"}

	_, err := repo.Get(ctx, key)
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)

	require.NoError(t, repo.Ensure(ctx, key))
	require.NoError(t, repo.Ensure(ctx, key)) // idempotent

	s, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalSessions)
	assert.EqualValues(t, 0, s.Version)
}

func TestProgressRepository_GetReturnsSnapshot(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()
	key := progress.Key{AppID: "app", UserID: "u"}
	require.NoError(t, repo.Ensure(ctx, key))

	s, err := repo.Get(ctx, key)
	require.NoError(t, err)
	s.TotalSessions = 42

	again, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TotalSessions)
}

func TestProgressRepository_UpdateAtomic(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()
	key := progress.Key{AppID: "app", UserID: "u"}
	require.NoError(t, repo.Ensure(ctx, key))

	updated, err := repo.UpdateAtomic(ctx, key, func(p *progress.Summary) error {
		p.TotalSessions = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalSessions)
	assert.EqualValues(t, 1, updated.Version)

	_, err = repo.UpdateAtomic(ctx, progress.Key{AppID: "app", UserID: "ghost"}, func(*progress.Summary) error {
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)
}

func TestProgressRepository_UpdateAtomic_ErrorDiscardsChanges(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()
	key := progress.Key{AppID: "app", UserID: "u"}
	require.NoError(t, repo.Ensure(ctx, key))

	boom := errors.New("boom")
	_, err := repo.UpdateAtomic(ctx, key, func(p *progress.Summary) error {
		p.TotalSessions = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalSessions)
	assert.EqualValues(t, 0, s.Version)
}

func TestProgressRepository_UpdateAtomic_ConcurrentIncrements(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()
	key := progress.Key{AppID: "app", UserID: "u"}
	require.NoError(t, repo.Ensure(ctx, key))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateAtomic(ctx, key, func(p *progress.Summary) error {
				p.TotalSessions++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, workers, s.TotalSessions)
	assert.EqualValues(t, workers, s.Version)
}

func TestProgressRepository_GetByApp(t *testing.T) {
	repo := NewProgressRepository()
	ctx := context.Background()

	require.NoError(t, repo.Ensure(ctx, progress.Key{AppID: "app-1", UserID: "a"}))
	require.NoError(t, repo.Ensure(ctx, progress.Key{AppID: "app-1", UserID: "b"}))
	require.NoError(t, repo.Ensure(ctx, progress.Key{AppID: "app-2", UserID: "a"}))

	summaries, err := repo.GetByApp(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}
