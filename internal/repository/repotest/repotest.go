// Package repotest provides a Postgres fixture for repository integration tests.
// Tests are skipped unless TEST_DB_DSN points at a disposable database.
package repotest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-orders/internal/migrate"
)

// Pool connects to TEST_DB_DSN, applies migrations and truncates every table.
func Pool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE requests, order_lines, orders, cart_merges, cart_lines, carts, products, tokens, customers, projects RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// Project inserts a project and returns its id.
func Project(ctx context.Context, t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx, `INSERT INTO projects (key, name) VALUES (gen_random_uuid()::text, 'Proj') RETURNING id::text`).Scan(&id); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return id
}

// Customer inserts a customer and returns its id.
func Customer(ctx context.Context, t *testing.T, pool *pgxpool.Pool, projectID, email string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `INSERT INTO customers (project_id, email, password_hash) VALUES ($1, $2, 'x') RETURNING id::text`, projectID, email).Scan(&id)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return id
}

// Product inserts a product and returns its id.
func Product(ctx context.Context, t *testing.T, pool *pgxpool.Pool, projectID, key string, listPriceCents int64, discount, stock int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO products (project_id, key, sku, name, list_price_cents, discount_percent, stock, currency)
VALUES ($1, $2, upper($2), initcap($2), $3, $4, $5, 'USD')
RETURNING id::text
`, projectID, key, listPriceCents, discount, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}
