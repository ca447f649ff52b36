package session

import (
	"context"

	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// Repository defines persistence for sessions.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create stores a new session.
	// Returns shared.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, s *Session) error

	// GetByID returns a session by ID.
	// Returns shared.ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id ID) (*Session, error)

	// Update persists lifecycle transitions on an existing session.
	// Returns shared.ErrSessionNotFound if the session does not exist.
	Update(ctx context.Context, s *Session) error

	// UpdateIf persists s only if the stored session still has the expected
	// status and scored flag, so racing writers cannot both commit the same
	// transition. Returns shared.ErrSessionStateChanged when another writer
	// got there first, shared.ErrSessionNotFound if the session does not
	// exist.
	UpdateIf(ctx context.Context, s *Session, expected Status, expectedScored bool) error

	// HasCompleted reports whether the user has at least one completed
	// session for the given app. Used by the recommendation exclusion set.
	HasCompleted(ctx context.Context, appID string, userID shared.UserID) (bool, error)
}
