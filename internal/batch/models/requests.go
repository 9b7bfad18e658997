package models

import (
	"strings"
	"time"

	"medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
)

// RegisterRequest carries everything needed to mint a new batch record.
// Details is optional; when present the batch is registered under the
// business schema, otherwise under the minimal proof schema.
type RegisterRequest struct {
	Manufacturer      domain.ManufacturerID `json:"-"`
	BatchID           domain.BatchID        `json:"batch_id"`
	MetadataHash      string                `json:"metadata_hash,omitempty"`
	Details           *Details              `json:"details,omitempty"`
	ManufacturingDate int64                 `json:"manufacturing_date"`
	ExpiryDate        int64                 `json:"expiry_date"`
	Quantity          uint64                `json:"quantity"`
	MRP               uint64                `json:"mrp"`
}

// Normalize trims identifier fields before validation.
func (r *RegisterRequest) Normalize() {
	r.BatchID = domain.BatchID(strings.TrimSpace(string(r.BatchID)))
	r.MetadataHash = strings.TrimSpace(r.MetadataHash)
}

// Validate enforces the registration rules against the request-pinned clock.
// The zero point for all dates is the Unix epoch in seconds.
func (r *RegisterRequest) Validate(now time.Time) error {
	if _, err := domain.ParseBatchID(string(r.BatchID)); err != nil {
		return err
	}
	if len(r.MetadataHash) > MaxMetadataHashLen {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonMetadataHashTooLong,
			"metadata hash exceeds maximum length")
	}
	if r.ManufacturingDate >= r.ExpiryDate {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidDateRange,
			"manufacturing date must precede expiry date")
	}
	if r.ExpiryDate <= now.Unix() {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonExpiredMedicine,
			"cannot register an already expired batch")
	}
	if r.Details != nil {
		if r.Quantity == 0 {
			return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidQuantity,
				"quantity must be positive")
		}
		if r.MRP == 0 {
			return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidMrp,
				"mrp must be positive")
		}
		if err := r.Details.Validate(now); err != nil {
			return err
		}
	}
	return nil
}

// NearExpiry reports whether the requested expiry date falls inside the
// advisory warning window. Registration still succeeds; callers surface
// this as a warning only.
func (r *RegisterRequest) NearExpiry(now time.Time) bool {
	return time.Unix(r.ExpiryDate, 0).Sub(now) <= NearExpiryWindow
}

func (r *RegisterRequest) schema() SchemaVersion {
	if r.Details != nil {
		return SchemaBusiness
	}
	return SchemaProof
}

// UpdateStatusRequest asks for an explicit status transition on an
// existing batch. Expired is not a valid explicit target; it is only
// reachable through the expiry check.
type UpdateStatusRequest struct {
	Actor   domain.ManufacturerID `json:"-"`
	BatchID domain.BatchID        `json:"-"`
	Status  BatchStatus           `json:"status"`
}

// Validate checks the requested target against the statuses an owner may
// ask for. Per-batch admissibility is checked later under the record lock.
func (r *UpdateStatusRequest) Validate() error {
	parsed, err := ParseBatchStatus(string(r.Status))
	if err != nil {
		return err
	}
	if parsed == StatusExpired {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidBatchStatus,
			"expired cannot be set directly; run an expiry check instead")
	}
	r.Status = parsed
	return nil
}
