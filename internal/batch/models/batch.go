package models

import (
	"time"

	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
)

// SchemaVersion tags which historical record shape a batch carries. One
// entity serves both shapes so a single implementation handles the full
// record population.
type SchemaVersion uint8

const (
	// SchemaProof is the minimal shape: proof fields plus an optional
	// off-chain metadata hash standing in for business detail.
	SchemaProof SchemaVersion = 1

	// SchemaBusiness carries the full business detail struct on the record.
	SchemaBusiness SchemaVersion = 2
)

// MaxMetadataHashLen bounds the optional off-chain content hash.
const MaxMetadataHashLen = 64

// NearExpiryWindow is the advisory horizon: a batch registered with this much
// or less left to expiry is accepted but flagged.
const NearExpiryWindow = 30 * 24 * time.Hour

// Batch is the central record of the registry, one per (manufacturer,
// batch id) pair, addressed by the derived key.
//
// Invariants:
//   - ExpiryDate > ManufacturingDate, and ExpiryDate > creation time
//   - Quantity and MRP are strictly positive
//   - Status only ever moves forward through the transition rules
//   - A batch is never deleted; mutations touch only Status and UpdatedAt
//   - CreatedAt and AddressScheme are immutable after construction
type Batch struct {
	Address      id.Address        `json:"address"`
	BatchID      id.BatchID        `json:"batch_id"`
	Manufacturer id.ManufacturerID `json:"manufacturer"`

	Schema       SchemaVersion `json:"schema"`
	MetadataHash string        `json:"metadata_hash,omitempty"`
	Details      *Details      `json:"details,omitempty"`

	ManufacturingDate int64  `json:"manufacturing_date"`
	ExpiryDate        int64  `json:"expiry_date"`
	Quantity          uint64 `json:"quantity"`
	MRP               uint64 `json:"mrp"`

	Status    BatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// AddressScheme records which derivation produced Address. Set once at
	// creation, never mutated.
	AddressScheme uint8 `json:"address_scheme"`
}

// NewBatch constructs an active batch from already validated input. Request
// validation (bounds, date rules) happens in the request types; this
// constructor only fixes the parts callers must not choose: birth status,
// timestamps, address, scheme.
func NewBatch(req *RegisterRequest, now time.Time) *Batch {
	return &Batch{
		Address:           id.DeriveBatchAddress(req.Manufacturer, req.BatchID),
		BatchID:           req.BatchID,
		Manufacturer:      req.Manufacturer,
		Schema:            req.schema(),
		MetadataHash:      req.MetadataHash,
		Details:           req.Details,
		ManufacturingDate: req.ManufacturingDate,
		ExpiryDate:        req.ExpiryDate,
		Quantity:          req.Quantity,
		MRP:               req.MRP,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
		AddressScheme:     id.AddressSchemeV1,
	}
}

// IsExpired reports whether the batch is past its expiry date, independent
// of stored status. Monotonic in now.
func (b *Batch) IsExpired(now time.Time) bool {
	return now.Unix() > b.ExpiryDate
}

// IsValid is the verification predicate: not recalled, not expired, and (in
// the business schema) physically acceptable.
func (b *Batch) IsValid(now time.Time) bool {
	if b.Status == StatusRecalled || b.IsExpired(now) {
		return false
	}
	if b.Details != nil && b.Details.PhysicalCondition != PhysicalGood {
		return false
	}
	return true
}

// NearExpiry reports whether the advisory near-expiry window covers now.
func (b *Batch) NearExpiry(now time.Time) bool {
	return !b.IsExpired(now) && time.Unix(b.ExpiryDate, 0).Sub(now) <= NearExpiryWindow
}

// CanUpdateStatus checks an explicit transition without applying it. Use with
// ApplyStatus inside the store's Execute callback so the check and the
// mutation happen under one record lock.
func (b *Batch) CanUpdateStatus(target BatchStatus) error {
	if b.Status == StatusRecalled {
		return dErrors.NewWithReason(dErrors.CodeInvariantViolation, dErrors.ReasonBatchAlreadyRecalled,
			"cannot modify a recalled batch")
	}
	if !b.Status.CanTransitionTo(target) {
		return dErrors.NewWithReason(dErrors.CodeInvariantViolation, dErrors.ReasonInvalidBatchStatus,
			"invalid batch status transition")
	}
	return nil
}

// ApplyStatus performs the transition. Call CanUpdateStatus first.
func (b *Batch) ApplyStatus(target BatchStatus, now time.Time) {
	b.Status = target
	b.UpdatedAt = now
}

// ShouldExpire checks the implicit transition precondition: only an active
// batch past its expiry date moves, so re-running the check on an already
// expired record is a no-op.
func (b *Batch) ShouldExpire(now time.Time) bool {
	return b.Status == StatusActive && b.IsExpired(now)
}

// ApplyExpiry performs the implicit transition. Call ShouldExpire first.
func (b *Batch) ApplyExpiry(now time.Time) {
	b.Status = StatusExpired
	b.UpdatedAt = now
}
