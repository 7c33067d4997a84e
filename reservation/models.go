package reservation

import "time"

// Interval is a closed calendar-day interval. Both endpoints are normalized
// to midnight UTC; a reservation ending on day N conflicts with one starting
// on day N.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates a timestamp to its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Normalize returns the interval with both endpoints truncated to days.
func (iv Interval) Normalize() Interval {
	return Interval{Start: Day(iv.Start), End: Day(iv.End)}
}

// Inverted reports whether the interval ends before it starts.
func (iv Interval) Inverted() bool {
	return iv.End.Before(iv.Start)
}

// Overlaps reports whether two closed intervals intersect. Touching endpoints
// count as overlapping.
func (iv Interval) Overlaps(other Interval) bool {
	return !iv.Start.After(other.End) && !iv.End.Before(other.Start)
}

// Reservation binds a game, a holder, and a time interval with a lifecycle
// status. Rows are never deleted; history is retained for audit.
type Reservation struct {
	ID        string
	GameID    string
	HolderID  string
	Interval  Interval
	Status    Status
	FastPath  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingRequest is a pending reservation enriched with the game name for
// listing in approval queues.
type PendingRequest struct {
	Reservation
	GameName string
}

// Event is an append-only record of a single status change.
type Event struct {
	ID            int64
	ReservationID string
	FromStatus    *Status
	ToStatus      Status
	ActorID       *string
	CreatedAt     time.Time
}
