package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
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
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("request_repo")}
}

const requestColumns = `id, project_id::text, kind, customer_id::text, product_id::text, product_name, quantity,
       unit_price_cents, total_cents, currency, contact_name, contact_phone, contact_city, contact_address,
       message, contact_consent, status, delivery_agent_id, delivery_status, delivery_notes,
       delivery_assigned_at, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, req domain.Request) (*domain.Request, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO requests (
    id, project_id, kind, customer_id, product_id, product_name, quantity, unit_price_cents, total_cents,
    currency, contact_name, contact_phone, contact_city, contact_address, message, contact_consent, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING created_at, updated_at
`,
		req.ID, req.ProjectID, string(req.Kind), req.CustomerID, req.ProductID, req.ProductName, req.Quantity,
		req.UnitPriceCents, req.TotalCents, req.Currency, req.Contact.Name, req.Contact.Phone, req.Contact.City,
		req.Contact.Address, req.Message, req.ContactConsent, string(req.Status),
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		r.logger.Error("create request", zap.String("request_id", req.ID), zap.Error(err))
		return nil, err
	}
	return &req, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, projectID, id string) (*domain.Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE project_id = $1 AND id = $2`, projectID, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *postgresRepo) List(ctx context.Context, projectID string, f domain.RequestFilter) ([]domain.Request, int, error) {
	where := []string{"project_id = $1"}
	args := []any{projectID}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		where = append(where, fmt.Sprintf("delivery_agent_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM requests WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(f.Offset, 0))
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM requests
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, requestColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *postgresRepo) Update(ctx context.Context, projectID, id string, fn MutateFunc) (*domain.Request, error) {
	var updated *domain.Request
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE project_id = $1 AND id = $2 FOR UPDATE`, projectID, id)
		current, err := scanRequest(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
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
UPDATE requests
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

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var (
		req                     domain.Request
		kind, status            string
		agentID, deliveryStatus *string
		deliveryNotes           string
		assignedAt              *time.Time
	)
	if err := row.Scan(
		&req.ID, &req.ProjectID, &kind, &req.CustomerID, &req.ProductID, &req.ProductName, &req.Quantity,
		&req.UnitPriceCents, &req.TotalCents, &req.Currency, &req.Contact.Name, &req.Contact.Phone,
		&req.Contact.City, &req.Contact.Address, &req.Message, &req.ContactConsent, &status,
		&agentID, &deliveryStatus, &deliveryNotes, &assignedAt, &req.CreatedAt, &req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Kind = domain.RequestKind(kind)
	req.Status = domain.RequestStatus(status)
	if agentID != nil {
		req.Delivery = &domain.DeliveryAssignment{AgentID: *agentID, Notes: deliveryNotes}
		if deliveryStatus != nil {
			req.Delivery.Status = domain.DeliveryStatus(*deliveryStatus)
		}
		if assignedAt != nil {
			req.Delivery.AssignedAt = *assignedAt
		}
	}
	return &req, nil
}
