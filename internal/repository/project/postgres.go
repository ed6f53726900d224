package project

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-orders/internal/domain"
)

const projectColumns = `id::text, key, name, created_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Key, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetByKey(ctx context.Context, key string) (*domain.Project, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrNotFound
	}
	return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE key = $1`, key))
}

func (r *postgresRepo) Ensure(ctx context.Context, key, name string) (*domain.Project, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.Invalid("key", "project key is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = key
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	q := `
INSERT INTO projects (key, name)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET name = projects.name
RETURNING ` + projectColumns
	return scanProject(r.pool.QueryRow(ctx, q, key, name))
}
