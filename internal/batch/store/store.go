// Package store defines the persistence boundary for batch records.
//
// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound when the requested record does not exist
// - Return sentinel.ErrAlreadyUsed when Create hits an occupied address
// - Return wrapped errors with context for infrastructure failures
//
// Execute runs validate then mutate while holding exclusive ownership of
// the record, so a status update can never interleave with another writer
// on the same address. Validation failures propagate unchanged and leave
// the record untouched.
package store

import (
	"context"

	"medledger/internal/batch/models"
	id "medledger/pkg/domain"
)

type Store interface {
	// Create persists a freshly minted batch. The address is the identity;
	// re-registration of the same (manufacturer, batch id) pair fails.
	Create(ctx context.Context, batch *models.Batch) error

	FindByAddress(ctx context.Context, address id.Address) (*models.Batch, error)

	ListByManufacturer(ctx context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error)

	// Execute loads the record at address, runs validate against its current
	// state, applies mutate on success, and persists the result atomically.
	// The returned batch reflects the post-mutation state.
	Execute(ctx context.Context, address id.Address, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error)
}
