package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

const productColumns = `id::text, project_id::text, key, sku, name, COALESCE(description, ''), list_price_cents,
       discount_percent, stock, currency, attributes, created_at, updated_at`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.ProjectID, &p.Key, &p.SKU, &p.Name, &p.Description, &p.ListPriceCents,
		&p.DiscountPercent, &p.Stock, &p.Currency, &p.Attributes, &p.CreatedAt, &p.UpdatedAt)
}

func (r *postgresRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Product, error) {
	q := `
SELECT ` + productColumns + `
FROM products
WHERE project_id = $1
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q, projectID)
	if err != nil {
		r.logger.Error("list products", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("listed products", zap.String("project_id", projectID), zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, projectID, id string) (*domain.Product, error) {
	q := `
SELECT ` + productColumns + `
FROM products
WHERE project_id = $1 AND id::text = $2
`
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, projectID, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product not found", zap.String("project_id", projectID), zap.String("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("project_id", projectID), zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (id, project_id, key, sku, name, description, list_price_cents, discount_percent, stock, currency, attributes)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, COALESCE($11, '{}'::jsonb))
ON CONFLICT (project_id, key) DO UPDATE SET
    sku = EXCLUDED.sku,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    list_price_cents = EXCLUDED.list_price_cents,
    discount_percent = EXCLUDED.discount_percent,
    stock = EXCLUDED.stock,
    currency = EXCLUDED.currency,
    attributes = EXCLUDED.attributes,
    updated_at = now()
RETURNING ` + productColumns
	attrs := product.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	var res domain.Product
	err := scanProduct(r.pool.QueryRow(ctx, q,
		product.ID,
		product.ProjectID,
		product.Key,
		product.SKU,
		product.Name,
		product.Description,
		product.ListPriceCents,
		product.DiscountPercent,
		product.Stock,
		product.Currency,
		attrs,
	), &res)
	if err != nil {
		r.logger.Error("upsert product", zap.String("key", product.Key), zap.String("project_id", product.ProjectID), zap.Error(err))
		return nil, err
	}
	if product.ID != "" && res.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for key=%s project_id=%s existing_id=%s import_id=%s", product.Key, product.ProjectID, res.ID, product.ID)
	}
	r.logger.Debug("upserted product", zap.String("key", res.Key), zap.String("id", res.ID))
	return &res, nil
}
