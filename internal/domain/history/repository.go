package history

import (
	"context"

	"stockpilot/internal/core/id"
)

// Repository defines storage for the audit trail.
type Repository interface {
	// Append inserts one entry. Entries are immutable.
	Append(ctx context.Context, entry Entry) error

	// ListByEntity returns entries for one document,
	// ordered ascending by (changed_at, id).
	ListByEntity(ctx context.Context, entityType string, entityID id.ID) ([]Entry, error)
}
