package actors

import (
	"context"
	"math/rand"
	"time"

	"gamelend/reservation"
)

// The actors hammer one game through the real engine. Domain conflicts and
// transient transport failures (the chaos goroutine kills backends) are all
// expected outcomes here; the SQL oracles decide whether the store stayed
// consistent.

func randomInterval() reservation.Interval {
	start := time.Now().UTC().AddDate(0, 0, 1+rand.Intn(30))
	end := start.AddDate(0, 0, rand.Intn(5))
	return reservation.Interval{Start: reservation.Day(start), End: reservation.Day(end)}
}

// Borrower exercises the owner fast path with random intervals.
func Borrower(ctx context.Context, svc *reservation.Service, gameID, ownerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.Borrow(ctx, reservation.BorrowParams{
			GameID:   gameID,
			HolderID: ownerID,
			ActorID:  ownerID,
			Interval: randomInterval(),
		})
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Requester files competing reservation requests.
func Requester(ctx context.Context, svc *reservation.Service, gameID, holderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.CreateRequest(ctx, reservation.RequestParams{
			GameID:   gameID,
			HolderID: holderID,
			Interval: randomInterval(),
		})
		time.Sleep(time.Duration(15+rand.Intn(40)) * time.Millisecond)
	}
}

// Approver drains the owner's pending queue, mostly approving. Concurrent
// approvals of overlapping requests are the headline race this harness
// exists to probe.
func Approver(ctx context.Context, svc *reservation.Service, ownerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		pending, err := svc.ListPending(ctx, ownerID)
		if err == nil && len(pending) > 0 {
			pick := pending[rand.Intn(len(pending))]
			_, _ = svc.Respond(ctx, reservation.RespondParams{
				ReservationID: pick.ID,
				ActorID:       ownerID,
				Approve:       rand.Intn(10) < 7,
			})
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Returner hands games back on the holders' behalf, acting as the owner.
func Returner(ctx context.Context, svc *reservation.Service, gameID, ownerID string, holders []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		holder := holders[rand.Intn(len(holders))]
		_, _ = svc.Return(ctx, reservation.ReturnParams{
			GameID:   gameID,
			HolderID: holder,
			ActorID:  ownerID,
		})
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}
