package catalog

import (
	"context"

	"github.com/thrivepath/practice-hub/internal/domain/shared"
)

// Repository defines read access to the activity catalog.
// The engine never writes catalog entries; implementations live in
// infrastructure/persistence.
type Repository interface {
	// GetByID returns a catalog entry by ID.
	// Returns shared.ErrAppNotFound if the entry does not exist.
	GetByID(ctx context.Context, id AppID) (*AppDefinition, error)

	// GetActive returns all active catalog entries in Position order.
	GetActive(ctx context.Context) ([]*AppDefinition, error)

	// GetActiveNotCompletedBy returns active entries the given user has no
	// completed session for, in Position order. The completion set and the
	// catalog are read under one logical snapshot.
	GetActiveNotCompletedBy(ctx context.Context, userID shared.UserID) ([]*AppDefinition, error)
}
