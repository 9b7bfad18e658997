//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with an open
// database handle and the registry schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS manufacturers (
    manufacturer   TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    address        TEXT NOT NULL UNIQUE,
    verified       BOOLEAN NOT NULL,
    secret_hash    TEXT NOT NULL,
    registered_at  BIGINT NOT NULL,
    address_scheme SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
    address            TEXT PRIMARY KEY,
    batch_id           TEXT NOT NULL,
    manufacturer       TEXT NOT NULL,
    schema_version     SMALLINT NOT NULL,
    metadata_hash      TEXT NOT NULL DEFAULT '',
    details            JSONB,
    manufacturing_date BIGINT NOT NULL,
    expiry_date        BIGINT NOT NULL,
    quantity           BIGINT NOT NULL DEFAULT 0,
    mrp                BIGINT NOT NULL DEFAULT 0,
    status             TEXT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL,
    address_scheme     SMALLINT NOT NULL
);
CREATE INDEX IF NOT EXISTS batches_manufacturer_idx ON batches (manufacturer, created_at);

CREATE TABLE IF NOT EXISTS audit_events (
    seq                BIGSERIAL PRIMARY KEY,
    id                 UUID NOT NULL UNIQUE,
    action             TEXT NOT NULL,
    category           TEXT NOT NULL,
    timestamp          TIMESTAMPTZ NOT NULL,
    address            TEXT NOT NULL,
    batch_id           TEXT NOT NULL DEFAULT '',
    manufacturer       TEXT NOT NULL DEFAULT '',
    old_status         TEXT NOT NULL DEFAULT '',
    new_status         TEXT NOT NULL DEFAULT '',
    actor              TEXT NOT NULL DEFAULT '',
    is_expired         BOOLEAN,
    is_valid           BOOLEAN,
    manufacturing_date BIGINT NOT NULL DEFAULT 0,
    expiry_date        BIGINT NOT NULL DEFAULT 0,
    quantity           BIGINT NOT NULL DEFAULT 0,
    mrp                BIGINT NOT NULL DEFAULT 0,
    request_id         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_address_idx ON audit_events (address, seq);
`

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("medledger"),
		tcpostgres.WithUsername("medledger"),
		tcpostgres.WithPassword("medledger"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Cleanup is handled by the singleton Manager and Ryuk, not t.Cleanup,
	// because the container is shared across test suites.

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
