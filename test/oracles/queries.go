package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			// No two borrowed reservations may ever share a day on a game.
			Name: "O1_no_double_loan",
			SQL: `SELECT a.id, b.id FROM reservations a
                  JOIN reservations b ON a.game_id = b.game_id AND a.id < b.id
                  WHERE a.status = 'borrowed' AND b.status = 'borrowed'
                    AND a.starts_on <= b.ends_on AND a.ends_on >= b.starts_on`,
		},
		{
			// Accepted/borrowed intervals never overlap, except the sanctioned
			// case of an owner's fast-path borrow over an accepted request.
			Name: "O2_no_overlapping_active",
			SQL: `SELECT a.id, b.id FROM reservations a
                  JOIN reservations b ON a.game_id = b.game_id AND a.id < b.id
                  WHERE a.status IN ('accepted', 'borrowed')
                    AND b.status IN ('accepted', 'borrowed')
                    AND a.starts_on <= b.ends_on AND a.ends_on >= b.starts_on
                    AND NOT ((a.status = 'borrowed' AND a.fast_path)
                          OR (b.status = 'borrowed' AND b.fast_path))`,
		},
		{
			Name: "O3_interval_order",
			SQL:  `SELECT id FROM reservations WHERE starts_on > ends_on`,
		},
		{
			// A returned reservation never re-enters borrowed.
			Name: "O4_returned_is_terminal",
			SQL: `SELECT e2.reservation_id FROM reservation_events e1
                  JOIN reservation_events e2 ON e2.reservation_id = e1.reservation_id
                  WHERE e1.to_status = 'returned' AND e2.to_status = 'borrowed' AND e2.id > e1.id`,
		},
		{
			// Every audit event records a legal transition.
			Name: "O5_legal_transitions",
			SQL: `SELECT id FROM reservation_events
                  WHERE NOT (
                        (from_status IS NULL AND to_status IN ('pending', 'borrowed'))
                     OR (from_status = 'pending' AND to_status IN ('accepted', 'rejected'))
                     OR (from_status = 'accepted' AND to_status IN ('borrowed', 'returned'))
                     OR (from_status = 'borrowed' AND to_status = 'returned'))`,
		},
		{
			// Non-pending reservations always carry their transition history.
			Name: "O6_audit_coverage",
			SQL: `SELECT r.id FROM reservations r
                  WHERE r.status <> 'pending'
                    AND NOT EXISTS (
                        SELECT 1 FROM reservation_events e
                        WHERE e.reservation_id = r.id AND e.to_status = r.status)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
