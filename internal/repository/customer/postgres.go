package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront-orders/internal/db"
	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("customer_repo")}
}

const customerColumns = `id::text, project_id::text, email, password_hash, COALESCE(first_name, ''), COALESCE(last_name, ''),
       COALESCE(phone, ''), COALESCE(city, ''), COALESCE(address, ''), created_at`

func (r *postgresRepo) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	q := `
INSERT INTO customers (project_id, email, password_hash, first_name, last_name, phone, city, address)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
RETURNING ` + customerColumns
	return r.scanCustomer(r.pool.QueryRow(
		ctx,
		q,
		c.ProjectID,
		strings.ToLower(c.Email),
		c.PasswordHash,
		c.FirstName,
		c.LastName,
		c.Phone,
		c.City,
		c.Address,
	))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, projectID, email string) (*domain.Customer, error) {
	q := `
SELECT ` + customerColumns + `
FROM customers
WHERE project_id = $1 AND lower(email) = lower($2)
LIMIT 1
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, projectID, email))
}

func (r *postgresRepo) GetByID(ctx context.Context, projectID, id string) (*domain.Customer, error) {
	q := `
SELECT ` + customerColumns + `
FROM customers
WHERE project_id = $1 AND id = $2
LIMIT 1
`
	return r.scanCustomer(r.pool.QueryRow(ctx, q, projectID, id))
}

func (r *postgresRepo) UpdateContact(ctx context.Context, projectID, id string, fn func(*domain.Customer)) (*domain.Customer, error) {
	var out *domain.Customer
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := r.scanCustomer(tx.QueryRow(ctx, `
SELECT `+customerColumns+`
FROM customers
WHERE project_id = $1 AND id = $2
FOR UPDATE
`, projectID, id))
		if err != nil {
			return err
		}
		fn(c)
		out, err = r.scanCustomer(tx.QueryRow(ctx, `
UPDATE customers
SET first_name = NULLIF($3, ''), last_name = NULLIF($4, ''), phone = NULLIF($5, ''),
    city = NULLIF($6, ''), address = NULLIF($7, '')
WHERE project_id = $1 AND id = $2
RETURNING `+customerColumns, projectID, id, c.FirstName, c.LastName, c.Phone, c.City, c.Address))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.Email,
		&c.PasswordHash,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.City,
		&c.Address,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("scan customer", zap.Error(err))
		return nil, err
	}
	return &c, nil
}
