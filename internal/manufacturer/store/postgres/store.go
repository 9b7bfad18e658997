package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"medledger/internal/manufacturer/models"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
	txcontext "medledger/pkg/platform/tx"
)

// Store persists manufacturer registry entries in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE manufacturers (
//	    manufacturer   TEXT PRIMARY KEY,
//	    name           TEXT NOT NULL,
//	    address        TEXT NOT NULL UNIQUE,
//	    verified       BOOLEAN NOT NULL,
//	    secret_hash    TEXT NOT NULL,
//	    registered_at  BIGINT NOT NULL,
//	    address_scheme SMALLINT NOT NULL
//	);
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO manufacturers (manufacturer, name, address, verified, secret_hash, registered_at, address_scheme)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		string(entry.Manufacturer),
		entry.Name,
		string(entry.Address),
		entry.Verified,
		entry.SecretHash,
		entry.RegisteredAt,
		int16(entry.AddressScheme),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("manufacturer %s already registered: %w", entry.Manufacturer, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert manufacturer: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, manufacturer id.ManufacturerID) (*models.Entry, error) {
	query := `
		SELECT manufacturer, name, address, verified, secret_hash, registered_at, address_scheme
		FROM manufacturers
		WHERE manufacturer = $1
	`
	var (
		entry         models.Entry
		mfr           string
		address       string
		addressScheme int16
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, string(manufacturer)).Scan(
		&mfr,
		&entry.Name,
		&address,
		&entry.Verified,
		&entry.SecretHash,
		&entry.RegisteredAt,
		&addressScheme,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("manufacturer %s not found: %w", manufacturer, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan manufacturer: %w", err)
	}
	entry.Manufacturer = id.ManufacturerID(mfr)
	entry.Address = id.Address(address)
	entry.AddressScheme = uint8(addressScheme)
	return &entry, nil
}
