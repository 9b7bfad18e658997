package postgres

import (
	"context"
	"database/sql"
	"fmt"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
	txcontext "medledger/pkg/platform/tx"
)

// Store persists the audit trail in PostgreSQL. The table is insert-only;
// a BIGSERIAL seq column gives a strict total order per address without
// trusting clock resolution.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    seq                BIGSERIAL PRIMARY KEY,
//	    id                 UUID NOT NULL UNIQUE,
//	    action             TEXT NOT NULL,
//	    category           TEXT NOT NULL,
//	    timestamp          TIMESTAMPTZ NOT NULL,
//	    address            TEXT NOT NULL,
//	    batch_id           TEXT NOT NULL DEFAULT '',
//	    manufacturer       TEXT NOT NULL DEFAULT '',
//	    old_status         TEXT NOT NULL DEFAULT '',
//	    new_status         TEXT NOT NULL DEFAULT '',
//	    actor              TEXT NOT NULL DEFAULT '',
//	    is_expired         BOOLEAN,
//	    is_valid           BOOLEAN,
//	    manufacturing_date BIGINT NOT NULL DEFAULT 0,
//	    expiry_date        BIGINT NOT NULL DEFAULT 0,
//	    quantity           BIGINT NOT NULL DEFAULT 0,
//	    mrp                BIGINT NOT NULL DEFAULT 0,
//	    request_id         TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX audit_events_address_idx ON audit_events (address, seq);
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer lets an Append join the mutating operation's transaction so the
// event commits atomically with the record change.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, action, category, timestamp, address, batch_id, manufacturer,
			old_status, new_status, actor, is_expired, is_valid,
			manufacturing_date, expiry_date, quantity, mrp, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		string(event.Category),
		event.Timestamp,
		string(event.Address),
		string(event.BatchID),
		string(event.Manufacturer),
		event.OldStatus,
		event.NewStatus,
		string(event.Actor),
		event.IsExpired,
		event.IsValid,
		event.ManufacturingDate,
		event.ExpiryDate,
		int64(event.Quantity),
		int64(event.MRP),
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByAddress(ctx context.Context, address id.Address) ([]audit.Event, error) {
	query := `
		SELECT id, action, category, timestamp, address, batch_id, manufacturer,
		       old_status, new_status, actor, is_expired, is_valid,
		       manufacturing_date, expiry_date, quantity, mrp, request_id
		FROM audit_events
		WHERE address = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(address))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across all addresses.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, action, category, timestamp, address, batch_id, manufacturer,
		       old_status, new_status, actor, is_expired, is_valid,
		       manufacturing_date, expiry_date, quantity, mrp, request_id
		FROM audit_events
		ORDER BY seq DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event        audit.Event
			action       string
			category     string
			address      string
			batchID      string
			manufacturer string
			actor        string
			quantity     int64
			mrp          int64
		)
		err := rows.Scan(
			&event.ID,
			&action,
			&category,
			&event.Timestamp,
			&address,
			&batchID,
			&manufacturer,
			&event.OldStatus,
			&event.NewStatus,
			&actor,
			&event.IsExpired,
			&event.IsValid,
			&event.ManufacturingDate,
			&event.ExpiryDate,
			&quantity,
			&mrp,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		event.Category = audit.Category(category)
		event.Address = id.Address(address)
		event.BatchID = id.BatchID(batchID)
		event.Manufacturer = id.ManufacturerID(manufacturer)
		event.Actor = id.ManufacturerID(actor)
		event.Quantity = uint64(quantity)
		event.MRP = uint64(mrp)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
