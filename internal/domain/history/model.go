// Package history provides the append-only status audit trail.
// Every lifecycle transition of orders, shipments, purchase orders and
// returns is recorded here and never updated or deleted.
package history

import (
	"time"

	"stockpilot/internal/core/id"
)

// Entry is one recorded status change.
type Entry struct {
	ID id.ID `db:"id" json:"id"`

	// EntityType names the document kind: "order", "shipment",
	// "purchase_order", "return", "payment".
	EntityType string `db:"entity_type" json:"entityType"`

	// EntityID is the document the change belongs to
	EntityID id.ID `db:"entity_id" json:"entityId"`

	OldStatus string `db:"old_status" json:"oldStatus"`
	NewStatus string `db:"new_status" json:"newStatus"`

	// ChangedBy is the acting user ID or system identity
	ChangedBy string `db:"changed_by" json:"changedBy"`

	// Note is an optional free-form remark
	Note string `db:"note" json:"note,omitempty"`

	// Changes carries an optional field-level diff payload.
	// Large payloads are compressed at the storage layer.
	Changes map[string]any `db:"-" json:"changes,omitempty"`

	ChangedAt time.Time `db:"changed_at" json:"changedAt"`
}

// NewEntry creates an entry with generated ID and current timestamp.
func NewEntry(entityType string, entityID id.ID, oldStatus, newStatus, changedBy string) Entry {
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedBy:  changedBy,
		ChangedAt:  time.Now().UTC(),
	}
}
