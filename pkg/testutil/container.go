// Package testutil provides testing utilities for the kiosk backend services.
// It includes testcontainers for PostgreSQL, mock factories, and common test
// fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "kiosk_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "kiosk_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateInventorySchema creates the inventory service tables. Constraint
// names are load-bearing: the error mapping layer matches on them.
func (c *PostgresContainer) CreateInventorySchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS inventory_items (
			id UUID PRIMARY KEY,
			sku VARCHAR(100) NOT NULL,
			barcode VARCHAR(100),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL,
			supplier_id UUID,
			unit VARCHAR(50) NOT NULL,
			cost_price_cents INTEGER NOT NULL DEFAULT 0,
			selling_price_cents INTEGER NOT NULL DEFAULT 0,
			min_stock INTEGER NOT NULL DEFAULT 0,
			max_stock INTEGER,
			reorder_level INTEGER NOT NULL DEFAULT 0,
			reorder_quantity INTEGER NOT NULL DEFAULT 0,
			shelf_life_days INTEGER,
			perishable BOOLEAN NOT NULL DEFAULT false,
			aggregate_stock INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_items_sku_key UNIQUE (sku)
		);

		CREATE TABLE IF NOT EXISTS purchase_orders (
			id UUID PRIMARY KEY,
			supplier_id UUID NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			notes TEXT,
			received_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT purchase_orders_po_status_valid
				CHECK (status IN ('draft', 'sent', 'confirmed', 'received', 'cancelled'))
		);

		CREATE TABLE IF NOT EXISTS purchase_order_lines (
			id UUID PRIMARY KEY,
			purchase_order_id UUID NOT NULL REFERENCES purchase_orders(id),
			item_id UUID NOT NULL REFERENCES inventory_items(id),
			quantity_ordered INTEGER NOT NULL,
			quantity_received INTEGER NOT NULL DEFAULT 0,
			unit_cost_cents INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT purchase_order_lines_po_item_key UNIQUE (purchase_order_id, item_id)
		);

		CREATE TABLE IF NOT EXISTS stock_batches (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES inventory_items(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity INTEGER NOT NULL,
			remaining_quantity INTEGER NOT NULL,
			unit_cost_cents INTEGER NOT NULL DEFAULT 0,
			manufactured_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			supplier_id UUID,
			purchase_order_id UUID REFERENCES purchase_orders(id),
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_batches_item_batch_number_key UNIQUE (item_id, batch_number),
			CONSTRAINT stock_batches_remaining_quantity_range
				CHECK (remaining_quantity >= 0 AND remaining_quantity <= quantity),
			CONSTRAINT stock_batches_batch_status_valid
				CHECK (status IN ('active', 'expired', 'consumed', 'damaged'))
		);

		CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES inventory_items(id),
			batch_id UUID REFERENCES stock_batches(id),
			movement_type VARCHAR(20) NOT NULL,
			quantity INTEGER NOT NULL,
			unit_cost_cents INTEGER NOT NULL DEFAULT 0,
			reference_kind VARCHAR(30) NOT NULL,
			reference_id VARCHAR(100) NOT NULL,
			reason TEXT,
			performed_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_movements_movement_type_valid
				CHECK (movement_type IN ('in', 'out', 'adjustment', 'waste'))
		);
		CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_stock_movements_reference ON stock_movements(reference_kind, reference_id);

		CREATE TABLE IF NOT EXISTS stock_count_sessions (
			id UUID PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			notes TEXT,
			started_by VARCHAR(255) NOT NULL,
			reconciled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stock_count_items (
			id UUID PRIMARY KEY,
			count_session_id UUID NOT NULL REFERENCES stock_count_sessions(id),
			item_id UUID NOT NULL REFERENCES inventory_items(id),
			counted_quantity INTEGER NOT NULL,
			system_quantity INTEGER,
			variance INTEGER,
			counted_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_count_items_session_item_key UNIQUE (count_session_id, item_id)
		);

		CREATE TABLE IF NOT EXISTS stock_alerts (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES inventory_items(id),
			batch_id UUID REFERENCES stock_batches(id),
			alert_type VARCHAR(30) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			message TEXT NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT false,
			acknowledged_by VARCHAR(255),
			acknowledged_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_alerts_alert_identity
				UNIQUE NULLS NOT DISTINCT (item_id, alert_type, batch_id)
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create inventory schema: %w", err)
	}

	return nil
}
