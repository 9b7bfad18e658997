// Package cache holds short-lived verification results so hot batches do
// not hit the record store on every scan. Entries are advisory; a miss or
// a cache failure always falls through to the store.
package cache

import (
	"context"

	"medledger/internal/batch/models"
	id "medledger/pkg/domain"
)

// VerifyResult is the public verification outcome for a batch.
type VerifyResult struct {
	Address      id.Address           `json:"address"`
	BatchID      id.BatchID           `json:"batch_id"`
	Manufacturer id.ManufacturerID    `json:"manufacturer"`
	Status       models.BatchStatus   `json:"status"`
	Valid        bool                 `json:"valid"`
	Expired      bool                 `json:"expired"`
	ExpiryDate   int64                `json:"expiry_date"`
	Schema       models.SchemaVersion `json:"schema"`
	Details      *models.Details      `json:"details,omitempty"`
}

// Cache stores verification results keyed by address. Get returns false on
// miss; implementations must never surface infrastructure errors to the
// verification path.
type Cache interface {
	Get(ctx context.Context, address id.Address) (*VerifyResult, bool)
	Set(ctx context.Context, address id.Address, result *VerifyResult)
}
