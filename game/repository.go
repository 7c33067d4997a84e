package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested game does not exist.
var ErrNotFound = errors.New("game: not found")

// Repository provides read access to the game catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a game by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Game, error) {
	const query = `
		SELECT id, name, platform, owner_kind::text, owner_id, created_at, updated_at
		FROM games
		WHERE id = $1
	`

	var g Game
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Platform,
		&g.Owner.Kind,
		&g.Owner.ID,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Game{}, ErrNotFound
		}
		return Game{}, fmt.Errorf("game: query by id: %w", err)
	}

	return g, nil
}

// Exists reports whether a game with the given id is in the catalog.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("game: check exists: %w", err)
	}
	return exists, nil
}

// Name returns the display name for the game.
func (r *Repository) Name(ctx context.Context, id string) (string, error) {
	var name string
	if err := r.pool.QueryRow(ctx, `SELECT name FROM games WHERE id = $1`, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("game: query name: %w", err)
	}
	return name, nil
}

// OwnerOf resolves the owning identity of a game.
func (r *Repository) OwnerOf(ctx context.Context, id string) (Owner, error) {
	var owner Owner
	err := r.pool.QueryRow(ctx, `SELECT owner_kind::text, owner_id FROM games WHERE id = $1`, id).
		Scan(&owner.Kind, &owner.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, ErrNotFound
		}
		return Owner{}, fmt.Errorf("game: query owner: %w", err)
	}
	return owner, nil
}

// List fetches up to limit games ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, platform, owner_kind::text, owner_id, created_at, updated_at
		FROM games
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("game: list: %w", err)
	}
	defer rows.Close()

	games := make([]Game, 0, limit)
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Name, &g.Platform, &g.Owner.Kind, &g.Owner.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("game: scan: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("game: iterate: %w", err)
	}

	return games, nil
}
