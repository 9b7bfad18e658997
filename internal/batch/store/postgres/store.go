package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"medledger/internal/batch/models"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
	txcontext "medledger/pkg/platform/tx"
)

// Store persists batch records in PostgreSQL. The derived address is the
// primary key, so the create-once rule falls out of a unique violation.
//
// Schema:
//
//	CREATE TABLE batches (
//	    address            TEXT PRIMARY KEY,
//	    batch_id           TEXT NOT NULL,
//	    manufacturer       TEXT NOT NULL,
//	    schema_version     SMALLINT NOT NULL,
//	    metadata_hash      TEXT NOT NULL DEFAULT '',
//	    details            JSONB,
//	    manufacturing_date BIGINT NOT NULL,
//	    expiry_date        BIGINT NOT NULL,
//	    quantity           BIGINT NOT NULL DEFAULT 0,
//	    mrp                BIGINT NOT NULL DEFAULT 0,
//	    status             TEXT NOT NULL,
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    updated_at         TIMESTAMPTZ NOT NULL,
//	    address_scheme     SMALLINT NOT NULL
//	);
//	CREATE INDEX batches_manufacturer_idx ON batches (manufacturer, created_at);
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const batchColumns = `address, batch_id, manufacturer, schema_version, metadata_hash, details,
	manufacturing_date, expiry_date, quantity, mrp, status, created_at, updated_at, address_scheme`

func (s *Store) Create(ctx context.Context, batch *models.Batch) error {
	var details []byte
	if batch.Details != nil {
		var err error
		details, err = json.Marshal(batch.Details)
		if err != nil {
			return fmt.Errorf("marshal batch details: %w", err)
		}
	}
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		string(batch.Address),
		string(batch.BatchID),
		string(batch.Manufacturer),
		int16(batch.Schema),
		batch.MetadataHash,
		details,
		batch.ManufacturingDate,
		batch.ExpiryDate,
		int64(batch.Quantity),
		int64(batch.MRP),
		string(batch.Status),
		batch.CreatedAt,
		batch.UpdatedAt,
		int16(batch.AddressScheme),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("batch record %s already exists: %w", batch.Address, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *Store) FindByAddress(ctx context.Context, address id.Address) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE address = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, string(address))
	return scanBatch(row, address)
}

func (s *Store) ListByManufacturer(ctx context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE manufacturer = $1
		ORDER BY created_at ASC, address ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(manufacturer))
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []*models.Batch
	for rows.Next() {
		batch, err := scanBatch(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

// Execute locks the row, runs the validate and mutate callbacks, and writes
// the result back. When the caller's context already carries a transaction
// the row lock joins it; otherwise a local transaction scopes the update.
func (s *Store) Execute(ctx context.Context, address id.Address, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.executeIn(ctx, tx, address, validate, mutate)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	batch, err := s.executeIn(ctx, tx, address, validate, mutate)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return batch, nil
}

func (s *Store) executeIn(ctx context.Context, tx *sql.Tx, address id.Address, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE address = $1 FOR UPDATE`
	batch, err := scanBatch(tx.QueryRowContext(ctx, query, string(address)), address)
	if err != nil {
		return nil, err
	}
	if err := validate(batch); err != nil {
		return nil, err
	}
	mutate(batch)

	update := `UPDATE batches SET status = $2, updated_at = $3 WHERE address = $1`
	if _, err := tx.ExecContext(ctx, update, string(batch.Address), string(batch.Status), batch.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update batch: %w", err)
	}
	return batch, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner, address id.Address) (*models.Batch, error) {
	var (
		batch         models.Batch
		addr          string
		batchID       string
		manufacturer  string
		schema        int16
		details       []byte
		quantity      int64
		mrp           int64
		status        string
		addressScheme int16
	)
	err := row.Scan(
		&addr,
		&batchID,
		&manufacturer,
		&schema,
		&batch.MetadataHash,
		&details,
		&batch.ManufacturingDate,
		&batch.ExpiryDate,
		&quantity,
		&mrp,
		&status,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&addressScheme,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch record %s not found: %w", address, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	batch.Address = id.Address(addr)
	batch.BatchID = id.BatchID(batchID)
	batch.Manufacturer = id.ManufacturerID(manufacturer)
	batch.Schema = models.SchemaVersion(schema)
	batch.Quantity = uint64(quantity)
	batch.MRP = uint64(mrp)
	batch.Status = models.BatchStatus(status)
	batch.AddressScheme = uint8(addressScheme)
	if len(details) > 0 {
		batch.Details = &models.Details{}
		if err := json.Unmarshal(details, batch.Details); err != nil {
			return nil, fmt.Errorf("unmarshal batch details: %w", err)
		}
	}
	return &batch, nil
}
