package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

const orderColumns = `id, project_id::text, customer_id::text, contact_name, contact_phone, contact_city, contact_address,
       notes, currency, total_cents, payment_method, payment_status, card_holder, card_last4, card_expiry,
       source, status, delivery_agent_id, delivery_status, delivery_notes, delivery_assigned_at,
       contact_consent, COALESCE(idempotency_key, ''), COALESCE(idempotency_scope, ''),
       COALESCE(request_fingerprint, ''), created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var cardHolder, cardLast4, cardExpiry *string
		if o.Card != nil {
			cardHolder, cardLast4, cardExpiry = &o.Card.Holder, &o.Card.Last4, &o.Card.Expiry
		}
		var idemKey, idemScope, fingerprint *string
		if o.IdempotencyKey != "" {
			idemKey, idemScope, fingerprint = &o.IdempotencyKey, &o.IdempotencyScope, &o.RequestFingerprint
		}
		err := tx.QueryRow(ctx, `
INSERT INTO orders (
    id, project_id, customer_id, contact_name, contact_phone, contact_city, contact_address, notes,
    currency, total_cents, payment_method, payment_status, card_holder, card_last4, card_expiry,
    source, status, contact_consent, idempotency_key, idempotency_scope, request_fingerprint
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
RETURNING created_at, updated_at
`,
			o.ID, o.ProjectID, o.CustomerID, o.Contact.Name, o.Contact.Phone, o.Contact.City, o.Contact.Address, o.Notes,
			o.Currency, o.TotalCents, string(o.PaymentMethod), o.PaymentStatus, cardHolder, cardLast4, cardExpiry,
			string(o.Source), string(o.Status), o.ContactConsent, idemKey, idemScope, fingerprint,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return err
		}

		for i, line := range o.Lines {
			if _, err := tx.Exec(ctx, `
INSERT INTO order_lines (
    order_id, position, product_id, sku, name, quantity, list_price_cents, discount_percent,
    unit_price_cents, line_total_cents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, o.ID, i, line.ProductID, line.SKU, line.Name, line.Quantity, line.ListPriceCents, line.DiscountPercent,
				line.UnitPriceCents, line.LineTotalCents); err != nil {
				return err
			}
			// No reservation: concurrent checkouts may both pass the stock check.
			if _, err := tx.Exec(ctx, `
UPDATE products
SET stock = GREATEST(stock - $3, 0), updated_at = now()
WHERE project_id = $1 AND id = $2
`, o.ProjectID, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("create order", zap.String("order_id", o.ID), zap.Error(err))
		return nil, err
	}
	r.logger.Info("order created", zap.String("order_id", o.ID), zap.String("project_id", o.ProjectID),
		zap.Int64("total_cents", o.TotalCents), zap.Int("lines", len(o.Lines)))
	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, projectID, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE project_id = $1 AND id = $2`
	return r.getOne(ctx, r.pool, q, projectID, id)
}

func (r *postgresRepo) GetByIdempotencyKey(ctx context.Context, projectID, scope, key string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE project_id = $1 AND idempotency_scope = $2 AND idempotency_key = $3`
	return r.getOne(ctx, r.pool, q, projectID, scope, key)
}

func (r *postgresRepo) FindBySuffix(ctx context.Context, projectID, suffix string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 2
	}
	q := `
SELECT ` + orderColumns + `
FROM orders
WHERE project_id = $1 AND id LIKE '%' || $2
ORDER BY created_at DESC
LIMIT $3
`
	return r.list(ctx, q, projectID, escapeLike(suffix), limit)
}

func (r *postgresRepo) List(ctx context.Context, projectID string, f domain.OrderFilter) ([]domain.Order, int, error) {
	where := []string{"project_id = $1"}
	args := []any{projectID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id::text = $%d", len(args)))
	}
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		where = append(where, fmt.Sprintf("delivery_agent_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	q := fmt.Sprintf(`
SELECT %s
FROM orders
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, orderColumns, cond, len(args)-1, len(args))
	orders, err := r.list(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *postgresRepo) Update(ctx context.Context, projectID, id string, fn MutateFunc) (*domain.Order, error) {
	var updated *domain.Order
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		q := `SELECT ` + orderColumns + ` FROM orders WHERE project_id = $1 AND id = $2 FOR UPDATE`
		current, err := r.getOne(ctx, tx, q, projectID, id)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}

		var agentID, deliveryStatus *string
		var assignedAt *time.Time
		notes := ""
		if d := current.Delivery; d != nil {
			status := string(d.Status)
			agentID, deliveryStatus, assignedAt, notes = &d.AgentID, &status, &d.AssignedAt, d.Notes
		}
		if err := tx.QueryRow(ctx, `
UPDATE orders
SET status = $3,
    delivery_agent_id = $4,
    delivery_status = $5,
    delivery_notes = $6,
    delivery_assigned_at = $7,
    contact_consent = $8,
    updated_at = now()
WHERE project_id = $1 AND id = $2
RETURNING updated_at
`, projectID, id, string(current.Status), agentID, deliveryStatus, notes, assignedAt, current.ContactConsent).Scan(&current.UpdatedAt); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresRepo) getOne(ctx context.Context, q querier, sql string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	lines, err := loadLines(ctx, q, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *postgresRepo) list(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var (
		out []domain.Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	lines, err := loadLines(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func loadLines(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `
SELECT order_id, product_id::text, sku, name, quantity, list_price_cents, discount_percent,
       unit_price_cents, line_total_cents
FROM order_lines
WHERE order_id = ANY($1)
ORDER BY order_id, position
`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			l       domain.OrderLine
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.SKU, &l.Name, &l.Quantity, &l.ListPriceCents,
			&l.DiscountPercent, &l.UnitPriceCents, &l.LineTotalCents); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                 domain.Order
		paymentMethod, source, status     string
		cardHolder, cardLast4, cardExpiry *string
		agentID, deliveryStatus           *string
		deliveryNotes                     string
		assignedAt                        *time.Time
	)
	if err := row.Scan(
		&o.ID, &o.ProjectID, &o.CustomerID, &o.Contact.Name, &o.Contact.Phone, &o.Contact.City, &o.Contact.Address,
		&o.Notes, &o.Currency, &o.TotalCents, &paymentMethod, &o.PaymentStatus, &cardHolder, &cardLast4, &cardExpiry,
		&source, &status, &agentID, &deliveryStatus, &deliveryNotes, &assignedAt,
		&o.ContactConsent, &o.IdempotencyKey, &o.IdempotencyScope, &o.RequestFingerprint, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	o.Source = domain.OrderSource(source)
	o.Status = domain.OrderStatus(status)
	if cardLast4 != nil {
		o.Card = &domain.CardDetails{Holder: deref(cardHolder), Last4: *cardLast4, Expiry: deref(cardExpiry)}
	}
	if agentID != nil {
		o.Delivery = &domain.DeliveryAssignment{
			AgentID: *agentID,
			Status:  domain.DeliveryStatus(deref(deliveryStatus)),
			Notes:   deliveryNotes,
		}
		if assignedAt != nil {
			o.Delivery.AssignedAt = *assignedAt
		}
	}
	return &o, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
