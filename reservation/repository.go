package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gamelend/game"
)

var (
	// ErrNotFound is returned when no reservation row exists for the provided identifier.
	ErrNotFound = errors.New("reservation: not found")
	// ErrGameNotFound signals the game identifier does not resolve.
	ErrGameNotFound = errors.New("reservation: game not found")
	// ErrOverlapping signals the candidate interval intersects an active reservation.
	ErrOverlapping = errors.New("reservation: interval overlaps an active reservation")
)

const reservationColumns = `id, game_id, holder_id, starts_on, ends_on, status::text, fast_path, created_at, updated_at`

// Store defines the data access required by the service. Methods taking a
// pgx.Tx participate in the caller's transaction so the per-game critical
// section covers both the availability check and the write.
type Store interface {
	LockGame(ctx context.Context, tx pgx.Tx, gameID string) error
	GameExists(ctx context.Context, gameID string) (bool, error)
	GetByID(ctx context.Context, id string) (Reservation, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Reservation, error)
	HasOverlap(ctx context.Context, tx pgx.Tx, gameID string, iv Interval, active []Status, excludeID string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, res Reservation) (Reservation, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) (Reservation, error)
	ReturnBorrowed(ctx context.Context, tx pgx.Tx, gameID, holderID string) ([]string, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, reservationID string, from *Status, to Status, actorID string) error
	ListPendingForScope(ctx context.Context, scope game.Scope) ([]PendingRequest, error)
}

// PGRepository implements Store backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed reservation repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LockGame takes the per-game advisory row lock that serializes every
// check-then-write operation on the game. It doubles as the existence check.
func (r *PGRepository) LockGame(ctx context.Context, tx pgx.Tx, gameID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM games WHERE id = $1 FOR UPDATE`, gameID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGameNotFound
		}
		return fmt.Errorf("reservation: lock game: %w", err)
	}
	return nil
}

// GameExists reports whether the game resolves, without locking it.
func (r *PGRepository) GameExists(ctx context.Context, gameID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, gameID).Scan(&exists); err != nil {
		return false, fmt.Errorf("reservation: check game exists: %w", err)
	}
	return exists, nil
}

// GetByID fetches a reservation outside any transaction.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, fmt.Errorf("reservation: get by id: %w", err)
	}
	return res, nil
}

// GetForUpdate fetches a reservation under a row lock inside the caller's
// transaction.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	res, err := scanReservation(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, fmt.Errorf("reservation: get for update: %w", err)
	}
	return res, nil
}

// HasOverlap reports whether any reservation in one of the active statuses
// intersects the closed candidate interval. excludeID, when non-empty, leaves
// one reservation out of the check (used when re-validating an approval
// against everyone but itself).
func (r *PGRepository) HasOverlap(ctx context.Context, tx pgx.Tx, gameID string, iv Interval, active []Status, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM reservations
			WHERE game_id = $1
			  AND status::text = ANY($2::text[])
			  AND starts_on <= $4
			  AND ends_on >= $3
			  AND id IS DISTINCT FROM NULLIF($5, '')::uuid
		)
	`

	statuses := make([]string, len(active))
	for i, s := range active {
		statuses[i] = string(s)
	}

	var overlapping bool
	if err := tx.QueryRow(ctx, query, gameID, statuses, iv.Start, iv.End, excludeID).Scan(&overlapping); err != nil {
		return false, fmt.Errorf("reservation: overlap query: %w", err)
	}
	return overlapping, nil
}

// Insert persists a new reservation inside the caller's transaction. The
// exclusion constraint on active intervals is a backstop for the in-tx
// overlap check; a violation maps to ErrOverlapping.
func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, res Reservation) (Reservation, error) {
	const query = `
		INSERT INTO reservations (id, game_id, holder_id, starts_on, ends_on, status, fast_path)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6::reservation_status, $7)
		RETURNING ` + reservationColumns

	created, err := scanReservation(tx.QueryRow(ctx, query,
		res.ID,
		res.GameID,
		res.HolderID,
		res.Interval.Start,
		res.Interval.End,
		res.Status,
		res.FastPath,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23P01": // exclusion constraint on active intervals
				return Reservation{}, ErrOverlapping
			case "23503": // game or holder foreign key
				return Reservation{}, ErrGameNotFound
			}
		}
		return Reservation{}, fmt.Errorf("reservation: insert: %w", err)
	}
	return created, nil
}

// UpdateStatus transitions a reservation, guarded by the expected current
// status so a lost race surfaces as no row instead of a silent overwrite.
func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, from, to Status) (Reservation, error) {
	const query = `
		UPDATE reservations
		SET status = $3::reservation_status,
		    updated_at = get_tx_timestamp()
		WHERE id = $1 AND status = $2::reservation_status
		RETURNING ` + reservationColumns

	res, err := scanReservation(tx.QueryRow(ctx, query, id, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return Reservation{}, ErrOverlapping
		}
		return Reservation{}, fmt.Errorf("reservation: update status: %w", err)
	}
	return res, nil
}

// ReturnBorrowed marks every borrowed reservation of the holder on the game
// as returned and reports the affected reservation ids.
func (r *PGRepository) ReturnBorrowed(ctx context.Context, tx pgx.Tx, gameID, holderID string) ([]string, error) {
	const query = `
		UPDATE reservations
		SET status = 'returned',
		    updated_at = get_tx_timestamp()
		WHERE game_id = $1 AND holder_id = $2 AND status = 'borrowed'
		RETURNING id
	`

	rows, err := tx.Query(ctx, query, gameID, holderID)
	if err != nil {
		return nil, fmt.Errorf("reservation: return borrowed: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 1)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reservation: scan returned id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservation: iterate returned ids: %w", err)
	}
	return ids, nil
}

// AppendEvent records a status change in the append-only audit trail inside
// the same transaction as the change itself.
func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, reservationID string, from *Status, to Status, actorID string) error {
	const query = `
		INSERT INTO reservation_events (reservation_id, from_status, to_status, actor_id)
		VALUES ($1, $2::reservation_status, $3::reservation_status, NULLIF($4, '')::uuid)
	`

	var fromVal any
	if from != nil {
		fromVal = string(*from)
	}

	if _, err := tx.Exec(ctx, query, reservationID, fromVal, to, actorID); err != nil {
		return fmt.Errorf("reservation: append event: %w", err)
	}
	return nil
}

// ListPendingForScope returns every pending reservation for games owned by
// one of the identities in the scope, newest last, with the game name joined
// in for display.
func (r *PGRepository) ListPendingForScope(ctx context.Context, scope game.Scope) ([]PendingRequest, error) {
	const query = `
		SELECT r.id, r.game_id, r.holder_id, r.starts_on, r.ends_on, r.status::text, r.fast_path, r.created_at, r.updated_at,
		       g.name
		FROM reservations r
		JOIN games g ON g.id = r.game_id
		WHERE r.status = 'pending'
		  AND ((g.owner_kind = 'account' AND g.owner_id = ANY($1::uuid[]))
		    OR (g.owner_kind = 'organization' AND g.owner_id = ANY($2::uuid[])))
		ORDER BY r.created_at ASC
	`

	accountIDs := scope.AccountIDs
	if accountIDs == nil {
		accountIDs = []string{}
	}
	orgIDs := scope.OrgIDs
	if orgIDs == nil {
		orgIDs = []string{}
	}

	rows, err := r.pool.Query(ctx, query, accountIDs, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("reservation: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]PendingRequest, 0, 8)
	for rows.Next() {
		var pr PendingRequest
		if err := rows.Scan(
			&pr.ID,
			&pr.GameID,
			&pr.HolderID,
			&pr.Interval.Start,
			&pr.Interval.End,
			&pr.Status,
			&pr.FastPath,
			&pr.CreatedAt,
			&pr.UpdatedAt,
			&pr.GameName,
		); err != nil {
			return nil, fmt.Errorf("reservation: scan pending: %w", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reservation: iterate pending: %w", err)
	}
	return out, nil
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	return res, row.Scan(
		&res.ID,
		&res.GameID,
		&res.HolderID,
		&res.Interval.Start,
		&res.Interval.End,
		&res.Status,
		&res.FastPath,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
}
