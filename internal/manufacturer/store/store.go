// Package store defines persistence for manufacturer registry entries.
//
// Error Contract:
// - Return sentinel.ErrNotFound when the entry does not exist
// - Return sentinel.ErrAlreadyUsed when Create hits an existing id
// - Return wrapped errors with context for infrastructure failures
package store

import (
	"context"

	"medledger/internal/manufacturer/models"
	id "medledger/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, entry *models.Entry) error
	FindByID(ctx context.Context, manufacturer id.ManufacturerID) (*models.Entry, error)
}
