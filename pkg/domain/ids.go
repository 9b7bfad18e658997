// Package domain holds the identity types shared across the registry.
//
// Identifiers are distinct Go types so a manufacturer ID can never be passed
// where a batch address is expected; the compiler enforces what the host
// runtime used to enforce with account types.
package domain

import (
	"strings"

	dErrors "medledger/pkg/domain-errors"
)

// MaxManufacturerIDLen bounds the owner identity. The value matches the
// longest wallet-style identity the registry accepts.
const MaxManufacturerIDLen = 64

// MaxBatchIDLen bounds the human-chosen batch identifier.
const MaxBatchIDLen = 64

// ManufacturerID is the verified owner identity of a record. It is opaque to
// the registry: whatever the identity layer signed for is what we store.
type ManufacturerID string

// ParseManufacturerID validates an owner identity at a trust boundary.
func ParseManufacturerID(raw string) (ManufacturerID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "manufacturer id cannot be empty")
	}
	if len(raw) > MaxManufacturerIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "manufacturer id exceeds maximum length")
	}
	return ManufacturerID(raw), nil
}

func (m ManufacturerID) String() string { return string(m) }

// IsZero reports whether the identity is unset.
func (m ManufacturerID) IsZero() bool { return m == "" }

// BatchID is the human-readable batch identifier chosen by the manufacturer.
// Uniqueness is per manufacturer, not global; the derived Address is what is
// globally unique.
type BatchID string

// ParseBatchID validates a batch identifier at a trust boundary.
func ParseBatchID(raw string) (BatchID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonEmptyBatchID, "batch id cannot be empty")
	}
	if len(raw) > MaxBatchIDLen {
		return "", dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonBatchIDTooLong, "batch id exceeds maximum length (64 chars)")
	}
	return BatchID(raw), nil
}

func (b BatchID) String() string { return string(b) }
