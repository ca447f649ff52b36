package progress

import (
	"context"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
)

// Repository defines persistence for progress summaries.
//
// The summary row for a given (app, user) key is the only shared mutable
// resource in the engine. UpdateAtomic is the sole write path for counters:
// a plain read-then-write would lose updates under concurrent completions,
// so implementations must guarantee the read and the write are indivisible
// per key - either an exclusive lock held for the duration of the update, or
// optimistic concurrency on the Version counter with bounded retries.
type Repository interface {
	// Ensure creates the all-zero summary for the key if it does not exist.
	// Idempotent: concurrent or repeated calls leave exactly one row.
	Ensure(ctx context.Context, key Key) error

	// Get returns a snapshot of the summary for the key.
	// Returns shared.ErrProgressNotFound if no row exists.
	Get(ctx context.Context, key Key) (*Summary, error)

	// UpdateAtomic applies fn to the current summary as one indivisible
	// read-modify-write with respect to any other update on the same key.
	// fn receives a private copy; if fn returns an error the update is
	// dropped and the error is returned unchanged. Returns the post-update
	// snapshot on success.
	//
	// When the implementation uses optimistic concurrency and retries are
	// exhausted, it returns shared.ErrProgressContention; the caller may
	// safely retry the whole operation.
	UpdateAtomic(ctx context.Context, key Key, fn func(*Summary) error) (*Summary, error)

	// GetByApp returns snapshots of all summaries for one app, used by the
	// leaderboard ranking. Order is unspecified.
	GetByApp(ctx context.Context, appID catalog.AppID) ([]*Summary, error)
}
