package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/portcullisdb/portcullis/internal/adapter/postgres"
	"github.com/portcullisdb/portcullis/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSchema = `
	CREATE SCHEMA reporting;

	CREATE TABLE customers (
		id         SERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	COMMENT ON TABLE customers IS 'Customer accounts';
	COMMENT ON COLUMN customers.email IS 'Unique login email';

	CREATE TABLE orders (
		id          SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		total       NUMERIC(10,2) NOT NULL DEFAULT 0,
		placed_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX idx_orders_customer ON orders(customer_id);

	CREATE VIEW reporting.order_totals AS
		SELECT customer_id, sum(total) AS lifetime_total
		FROM orders GROUP BY customer_id;

	INSERT INTO customers (name, email)
	SELECT 'Customer ' || i, 'c' || i || '@example.com'
	FROM generate_series(1, 50) AS i;

	INSERT INTO orders (customer_id, total)
	SELECT (i % 50) + 1, (i * 7 % 300)::numeric(10,2)
	FROM generate_series(1, 200) AS i;
`

// setupGateDB starts a disposable PostgreSQL container, seeds the test
// schema, and returns a registry with a single target named "primary".
func setupGateDB(t *testing.T, settings postgres.PoolSettings) *postgres.Registry {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	registry, err := postgres.NewRegistry(ctx, []config.Target{
		{Name: "primary", URL: connStr},
	}, settings)
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	pool, err := registry.Pool("primary")
	require.NoError(t, err)

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	// Populate pg_class estimates so explorer size queries see real numbers.
	_, err = pool.Exec(ctx, "ANALYZE")
	require.NoError(t, err)

	return registry
}
