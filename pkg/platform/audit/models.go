package audit

import (
	"time"

	id "medledger/pkg/domain"
)

// Action names a registry operation that produced an audit event.
type Action string

const (
	ActionManufacturerRegistered Action = "manufacturer_registered"
	ActionBatchRegistered        Action = "batch_registered"
	ActionBatchStatusUpdated     Action = "batch_status_updated"
	ActionBatchExpired           Action = "batch_expired"
	ActionBatchVerified          Action = "batch_verified"
)

// Category classifies audit events by their primary purpose. Registry
// mutations are compliance events (tamper-evident trail, long retention);
// verification reads are operations events (high volume, sampleable).
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

var actionCategories = map[Action]Category{
	ActionManufacturerRegistered: CategoryCompliance,
	ActionBatchRegistered:        CategoryCompliance,
	ActionBatchStatusUpdated:     CategoryCompliance,
	ActionBatchExpired:           CategoryCompliance,
	ActionBatchVerified:          CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// operations so a new action can never silently claim compliance retention.
func (a Action) Category() Category {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is one immutable entry in the registry's append-only trail. It is
// emitted from domain logic after an operation has fully succeeded; the core
// never reads events back to make decisions.
type Event struct {
	ID        string     `json:"id"`
	Action    Action     `json:"action"`
	Category  Category   `json:"category"`
	Timestamp time.Time  `json:"timestamp"`
	Address   id.Address `json:"address"`

	// Record identifiers.
	BatchID      id.BatchID        `json:"batch_id,omitempty"`
	Manufacturer id.ManufacturerID `json:"manufacturer,omitempty"`

	// Status transition detail (status update and expiry events).
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`

	// Actor is the verified caller, where the operation has one. The expiry
	// check and verification are public, so those events carry no actor.
	Actor id.ManufacturerID `json:"actor,omitempty"`

	// Verification outcome (verified events only).
	IsExpired *bool `json:"is_expired,omitempty"`
	IsValid   *bool `json:"is_valid,omitempty"`

	// Registration detail (registered events only).
	ManufacturingDate int64  `json:"manufacturing_date,omitempty"`
	ExpiryDate        int64  `json:"expiry_date,omitempty"`
	Quantity          uint64 `json:"quantity,omitempty"`
	MRP               uint64 `json:"mrp,omitempty"`

	// RequestID correlates the event with the request that produced it.
	RequestID string `json:"request_id,omitempty"`
}
