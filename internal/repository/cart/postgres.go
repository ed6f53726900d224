package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-orders/internal/db"
	"storefront-orders/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, projectID, customerID string) (*StoredCart, error) {
	out := &StoredCart{ProjectID: projectID, CustomerID: customerID}
	var cartID string
	err := r.pool.QueryRow(ctx, `
SELECT id::text, updated_at
FROM carts
WHERE project_id = $1 AND customer_id = $2
`, projectID, customerID).Scan(&cartID, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, nil
		}
		return nil, err
	}

	const linesQuery = `
SELECT l.product_id::text, l.quantity, l.snapshot, l.added_at,
       p.id::text, p.key, p.sku, p.name, COALESCE(p.description, ''), p.list_price_cents,
       p.discount_percent, p.stock, p.currency, p.attributes, p.created_at, p.updated_at
FROM cart_lines l
LEFT JOIN products p ON p.id = l.product_id AND p.project_id = $2
WHERE l.cart_id = $1
ORDER BY l.added_at ASC, l.product_id ASC
`
	rows, err := r.pool.Query(ctx, linesQuery, cartID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line StoredLine
			live nullableProduct
		)
		if err := rows.Scan(
			&line.ProductID, &line.Quantity, &line.Snapshot, &line.AddedAt,
			&live.ID, &live.Key, &live.SKU, &live.Name, &live.Description, &live.ListPriceCents,
			&live.DiscountPercent, &live.Stock, &live.Currency, &live.Attributes, &live.CreatedAt, &live.UpdatedAt,
		); err != nil {
			return nil, err
		}
		line.Product = live.product(projectID)
		out.Lines = append(out.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) AddLine(ctx context.Context, projectID, customerID string, line MergeLine) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, projectID, customerID)
		if err != nil {
			return err
		}
		return addQuantity(ctx, tx, cartID, line)
	})
}

func (r *postgresRepo) SetLineQuantity(ctx context.Context, projectID, customerID, productID string, quantity int) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, projectID, customerID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			_, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id::text = $2`, cartID, productID)
			return err
		}
		cmd, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $3
WHERE cart_id = $1 AND product_id::text = $2
`, cartID, productID, quantity)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *postgresRepo) RemoveLine(ctx context.Context, projectID, customerID, productID string) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, projectID, customerID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id::text = $2`, cartID, productID)
		return err
	})
}

func (r *postgresRepo) Clear(ctx context.Context, projectID, customerID string) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, projectID, customerID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
		return err
	})
}

// Merge applies every line in one transaction: quantities are summed onto
// existing lines and new lines are inserted. Either all lines land or none.
// The guest revision is recorded under the cart lock, so a replay of the same
// guest cart (a lost cookie deletion, two racing logins) adds nothing.
func (r *postgresRepo) Merge(ctx context.Context, projectID, customerID string, guest GuestRef, lines []MergeLine) (bool, error) {
	applied := false
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, projectID, customerID)
		if err != nil {
			return err
		}
		if guest.ID != "" {
			tag, err := tx.Exec(ctx, `
INSERT INTO cart_merges (project_id, customer_id, guest_cart_id, guest_cart_rev)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING
`, projectID, customerID, guest.ID, guest.Rev)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
		}
		for _, line := range lines {
			if err := addQuantity(ctx, tx, cartID, line); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// lockCart upserts the owner's cart and holds its row lock until the
// transaction ends, serializing all mutations of that cart.
func lockCart(ctx context.Context, tx pgx.Tx, projectID, customerID string) (string, error) {
	var cartID string
	err := tx.QueryRow(ctx, `
INSERT INTO carts (project_id, customer_id)
VALUES ($1, $2)
ON CONFLICT (project_id, customer_id) DO UPDATE SET updated_at = now()
RETURNING id::text
`, projectID, customerID).Scan(&cartID)
	return cartID, err
}

func addQuantity(ctx context.Context, tx pgx.Tx, cartID string, line MergeLine) error {
	_, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, product_id, quantity, snapshot)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_id) DO UPDATE SET
    quantity = cart_lines.quantity + EXCLUDED.quantity,
    snapshot = EXCLUDED.snapshot
`, cartID, line.ProductID, line.Quantity, line.Snapshot)
	return err
}

// nullableProduct receives the LEFT JOIN side of a cart line.
type nullableProduct struct {
	ID              *string
	Key             *string
	SKU             *string
	Name            *string
	Description     *string
	ListPriceCents  *int64
	DiscountPercent *int
	Stock           *int
	Currency        *string
	Attributes      map[string]interface{}
	CreatedAt       *time.Time
	UpdatedAt       *time.Time
}

func (n nullableProduct) product(projectID string) *domain.Product {
	if n.ID == nil {
		return nil
	}
	p := &domain.Product{
		ID:              *n.ID,
		ProjectID:       projectID,
		Key:             deref(n.Key),
		SKU:             deref(n.SKU),
		Name:            deref(n.Name),
		Description:     deref(n.Description),
		ListPriceCents:  *n.ListPriceCents,
		DiscountPercent: *n.DiscountPercent,
		Stock:           *n.Stock,
		Currency:        deref(n.Currency),
		Attributes:      n.Attributes,
	}
	if n.CreatedAt != nil {
		p.CreatedAt = *n.CreatedAt
	}
	if n.UpdatedAt != nil {
		p.UpdatedAt = *n.UpdatedAt
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
