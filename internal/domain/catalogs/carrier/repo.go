package carrier

import (
	"stockpilot/internal/domain"
)

// Repository defines the interface for Carrier persistence.
type Repository interface {
	domain.CatalogRepository[*Carrier]
}
