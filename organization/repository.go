package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested organization does not exist.
var ErrNotFound = errors.New("organization: not found")

// Repository provides read access to organizations and their memberships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches an organization by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Organization, error) {
	const query = `
		SELECT id, name, created_at
		FROM organizations
		WHERE id = $1
	`

	var org Organization
	err := r.pool.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("organization: query by id: %w", err)
	}

	return org, nil
}

// List fetches up to limit organizations ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Organization, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, created_at
		FROM organizations
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("organization: list: %w", err)
	}
	defer rows.Close()

	orgs := make([]Organization, 0, limit)
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("organization: scan: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("organization: iterate: %w", err)
	}

	return orgs, nil
}

// AdminOrgsFor returns the ids of every organization the account administers.
func (r *Repository) AdminOrgsFor(ctx context.Context, accountID string) ([]string, error) {
	const query = `
		SELECT organization_id
		FROM organization_members
		WHERE account_id = $1 AND role = 'admin'
		ORDER BY organization_id
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("organization: admin orgs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 4)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("organization: scan admin org: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("organization: iterate admin orgs: %w", err)
	}

	return ids, nil
}
