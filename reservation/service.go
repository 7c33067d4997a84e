package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gamelend/game"
)

var (
	// ErrInvertedInterval signals the candidate interval ends before it starts.
	ErrInvertedInterval = errors.New("reservation: interval ends before it starts")
	// ErrIntervalInPast signals the candidate interval starts before the current date.
	ErrIntervalInPast = errors.New("reservation: interval starts in the past")
	// ErrAlreadyResponded signals the request left pending before this response.
	ErrAlreadyResponded = errors.New("reservation: request already responded to")
	// ErrForbidden signals the actor lacks approval scope over the game's owner.
	ErrForbidden = errors.New("reservation: actor lacks scope over this game")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OwnerDirectory resolves the owning identity of a game.
type OwnerDirectory interface {
	OwnerOf(ctx context.Context, gameID string) (game.Owner, error)
}

// ScopeResolver computes which owner identities an account may act for.
type ScopeResolver interface {
	ScopeFor(ctx context.Context, accountID string) (game.Scope, error)
}

// Service is the borrow/booking engine: interval validation, the reservation
// state machine, and the request/respond/return workflow. Every operation
// that can produce an accepted or borrowed row performs its availability
// check and write inside one transaction under the per-game lock.
type Service struct {
	pool   TxBeginner
	store  Store
	owners OwnerDirectory
	scopes ScopeResolver
	now    func() time.Time
	idGen  func() string
}

// NewService wires the engine. A nil store defaults to the PostgreSQL
// repository when pool is a *pgxpool.Pool-compatible beginner.
func NewService(pool TxBeginner, store Store, owners OwnerDirectory, scopes ScopeResolver) *Service {
	return &Service{
		pool:   pool,
		store:  store,
		owners: owners,
		scopes: scopes,
		now:    time.Now,
		idGen:  func() string { return uuid.NewString() },
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides reservation id generation.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// BorrowParams describe an owner's instant borrow.
type BorrowParams struct {
	GameID   string
	HolderID string
	ActorID  string
	Interval Interval
}

// Borrow is the owner fast path: it bypasses the request workflow but still
// respects reservations that are physically out the door. Only borrowed
// reservations block it; pending or accepted requests deliberately do not.
func (s *Service) Borrow(ctx context.Context, params BorrowParams) (Reservation, error) {
	if params.GameID == "" || params.HolderID == "" {
		return Reservation{}, fmt.Errorf("reservation: borrow missing game or holder id")
	}
	iv, err := s.validInterval(params.Interval)
	if err != nil {
		return Reservation{}, err
	}
	if err := s.authorizeOwner(ctx, params.GameID, params.ActorID); err != nil {
		return Reservation{}, err
	}

	var created Reservation
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.LockGame(ctx, tx, params.GameID); err != nil {
			return err
		}
		overlapping, err := s.store.HasOverlap(ctx, tx, params.GameID, iv, BorrowActiveSet, "")
		if err != nil {
			return err
		}
		if overlapping {
			return ErrOverlapping
		}

		created, err = s.store.Insert(ctx, tx, Reservation{
			ID:       s.idGen(),
			GameID:   params.GameID,
			HolderID: params.HolderID,
			Interval: iv,
			Status:   StatusBorrowed,
			FastPath: true,
		})
		if err != nil {
			return err
		}
		return s.store.AppendEvent(ctx, tx, created.ID, nil, StatusBorrowed, params.ActorID)
	})
	if err != nil {
		return Reservation{}, err
	}
	return created, nil
}

// ReturnOutcome reports what a return did.
type ReturnOutcome string

const (
	ReturnOutcomeReturned    ReturnOutcome = "returned"
	ReturnOutcomeNotBorrowed ReturnOutcome = "not_borrowed"
)

// ReturnParams describe a return of a borrowed game.
type ReturnParams struct {
	GameID   string
	HolderID string
	ActorID  string
}

// ReturnResult lists the reservations closed by a return.
type ReturnResult struct {
	Outcome        ReturnOutcome
	ReservationIDs []string
}

// Return marks the holder's borrowed reservations on the game as returned.
// A game with nothing borrowed is a valid no-op, not an error. The actor must
// be the holder or hold owner scope.
func (s *Service) Return(ctx context.Context, params ReturnParams) (ReturnResult, error) {
	if params.GameID == "" || params.HolderID == "" {
		return ReturnResult{}, fmt.Errorf("reservation: return missing game or holder id")
	}

	exists, err := s.store.GameExists(ctx, params.GameID)
	if err != nil {
		return ReturnResult{}, err
	}
	if !exists {
		return ReturnResult{}, ErrGameNotFound
	}

	if params.ActorID != params.HolderID {
		if err := s.authorizeOwner(ctx, params.GameID, params.ActorID); err != nil {
			return ReturnResult{}, err
		}
	}

	var result ReturnResult
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		ids, err := s.store.ReturnBorrowed(ctx, tx, params.GameID, params.HolderID)
		if err != nil {
			return err
		}
		from := StatusBorrowed
		for _, id := range ids {
			if err := s.store.AppendEvent(ctx, tx, id, &from, StatusReturned, params.ActorID); err != nil {
				return err
			}
		}
		result = ReturnResult{Outcome: ReturnOutcomeReturned, ReservationIDs: ids}
		if len(ids) == 0 {
			result.Outcome = ReturnOutcomeNotBorrowed
		}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	return result, nil
}

// RequestParams describe a non-owner's reservation request.
type RequestParams struct {
	GameID   string
	HolderID string
	Interval Interval
}

// CreateRequest files a pending reservation after validating the interval
// against accepted and borrowed reservations. Validity is re-verified at
// approval time; this first pass only rejects requests that are already
// doomed.
func (s *Service) CreateRequest(ctx context.Context, params RequestParams) (Reservation, error) {
	if params.GameID == "" || params.HolderID == "" {
		return Reservation{}, fmt.Errorf("reservation: request missing game or holder id")
	}
	iv, err := s.validInterval(params.Interval)
	if err != nil {
		return Reservation{}, err
	}

	var created Reservation
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.LockGame(ctx, tx, params.GameID); err != nil {
			return err
		}
		overlapping, err := s.store.HasOverlap(ctx, tx, params.GameID, iv, RequestActiveSet, "")
		if err != nil {
			return err
		}
		if overlapping {
			return ErrOverlapping
		}

		created, err = s.store.Insert(ctx, tx, Reservation{
			ID:       s.idGen(),
			GameID:   params.GameID,
			HolderID: params.HolderID,
			Interval: iv,
			Status:   StatusPending,
			FastPath: false,
		})
		if err != nil {
			return err
		}
		return s.store.AppendEvent(ctx, tx, created.ID, nil, StatusPending, params.HolderID)
	})
	if err != nil {
		return Reservation{}, err
	}
	return created, nil
}

// RespondOutcome distinguishes the three ways a response can land.
type RespondOutcome string

const (
	// OutcomeApproved means the request is now accepted.
	OutcomeApproved RespondOutcome = "approved"
	// OutcomeRejected means the approver declined the request.
	OutcomeRejected RespondOutcome = "rejected"
	// OutcomeConflict means the approval was attempted but the interval has
	// been taken since the request was filed; the request is auto-rejected.
	OutcomeConflict RespondOutcome = "conflict"
)

// RespondParams describe an approver's answer to a pending request.
type RespondParams struct {
	ReservationID string
	ActorID       string
	Approve       bool
}

// RespondResult bundles the updated reservation with the outcome.
type RespondResult struct {
	Reservation Reservation
	Outcome     RespondOutcome
}

// Respond answers a pending request. Approval re-runs the overlap check for
// the same interval excluding the request itself, because time has elapsed
// since creation and another request may have been accepted meanwhile.
// Validity is verified at the moment of commitment, not just at submission.
func (s *Service) Respond(ctx context.Context, params RespondParams) (RespondResult, error) {
	if params.ReservationID == "" {
		return RespondResult{}, fmt.Errorf("reservation: respond missing reservation id")
	}

	// Peek outside the transaction to authorize against the game owner and
	// fail fast on settled requests; the status is re-checked under lock.
	peek, err := s.store.GetByID(ctx, params.ReservationID)
	if err != nil {
		return RespondResult{}, err
	}
	if peek.Status != StatusPending {
		return RespondResult{}, ErrAlreadyResponded
	}
	if err := s.authorizeOwner(ctx, peek.GameID, params.ActorID); err != nil {
		return RespondResult{}, err
	}

	var result RespondResult
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if params.Approve {
			if err := s.store.LockGame(ctx, tx, peek.GameID); err != nil {
				return err
			}
		}

		cur, err := s.store.GetForUpdate(ctx, tx, params.ReservationID)
		if err != nil {
			return err
		}
		if cur.Status != StatusPending {
			return ErrAlreadyResponded
		}

		target := StatusAccepted
		outcome := OutcomeApproved
		if !params.Approve {
			target = StatusRejected
			outcome = OutcomeRejected
		} else {
			overlapping, err := s.store.HasOverlap(ctx, tx, cur.GameID, cur.Interval, RequestActiveSet, cur.ID)
			if err != nil {
				return err
			}
			if overlapping {
				// The slot is gone; auto-reject so the requester resubmits
				// with a different interval instead of retrying this one.
				target = StatusRejected
				outcome = OutcomeConflict
			}
		}

		if !CanTransition(cur.Status, target) {
			return fmt.Errorf("reservation: illegal transition %s -> %s", cur.Status, target)
		}

		updated, err := s.store.UpdateStatus(ctx, tx, cur.ID, cur.Status, target)
		if err != nil {
			return err
		}
		from := cur.Status
		if err := s.store.AppendEvent(ctx, tx, cur.ID, &from, target, params.ActorID); err != nil {
			return err
		}

		result = RespondResult{Reservation: updated, Outcome: outcome}
		return nil
	})
	if err != nil {
		return RespondResult{}, err
	}
	return result, nil
}

// ListPending returns every pending request the actor may act on: requests
// for games owned by the actor or by an organization the actor administers.
func (s *Service) ListPending(ctx context.Context, actorID string) ([]PendingRequest, error) {
	scope, err := s.scopes.ScopeFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.store.ListPendingForScope(ctx, scope)
}

func (s *Service) validInterval(iv Interval) (Interval, error) {
	iv = iv.Normalize()
	if iv.Inverted() {
		return Interval{}, ErrInvertedInterval
	}
	if iv.Start.Before(Day(s.now())) {
		return Interval{}, ErrIntervalInPast
	}
	return iv, nil
}

func (s *Service) authorizeOwner(ctx context.Context, gameID, actorID string) error {
	if actorID == "" {
		return ErrForbidden
	}
	owner, err := s.owners.OwnerOf(ctx, gameID)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			return ErrGameNotFound
		}
		return err
	}
	scope, err := s.scopes.ScopeFor(ctx, actorID)
	if err != nil {
		return err
	}
	if !scope.Contains(owner) {
		return ErrForbidden
	}
	return nil
}

const txAttempts = 3

// inTx runs fn inside a transaction, retrying serialization failures and
// deadlocks a bounded number of times. Domain conflicts are never retried;
// they are final answers the caller must act on.
func (s *Service) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txAttempts; attempt++ {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("reservation: begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if !isRetryable(err) {
				return err
			}
			lastErr = err
			continue
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if !isRetryable(err) {
				return fmt.Errorf("reservation: commit tx: %w", err)
			}
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("reservation: transaction retries exhausted: %w", lastErr)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
