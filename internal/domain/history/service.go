package history

import (
	"context"
	"fmt"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
)

// Service records and queries status changes.
type Service struct {
	repo Repository
}

// NewService creates a new history service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends a status change to the audit trail.
// Storage failures surface to the caller: an unrecordable transition
// must fail the surrounding transaction, not silently lose its audit row.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if entry.EntityType == "" {
		return apperror.NewValidation("entity type is required")
	}
	if id.IsNil(entry.EntityID) {
		return apperror.NewValidation("entity id is required")
	}
	if entry.NewStatus == "" {
		return apperror.NewValidation("new status is required")
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the audit trail for one document, oldest first.
func (s *Service) History(ctx context.Context, entityType string, entityID id.ID) ([]Entry, error) {
	if entityType == "" {
		return nil, apperror.NewValidation("entity type is required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID)
}
