package reservation

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
)

// Valid reports whether the status is a member of the closed enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusBorrowed, StatusReturned:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status can never be left again. A returned
// reservation needs a fresh record to borrow the game again.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReturned
}

// CanTransition is the single authority on legal status transitions.
// Transitions are monotonic; terminal states are never reopened.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusAccepted || to == StatusRejected
	case StatusAccepted:
		return to == StatusBorrowed || to == StatusReturned
	case StatusBorrowed:
		return to == StatusReturned
	default:
		return false
	}
}

// Active-status sets for the overlap check. The direct-borrow path only
// honors games physically out the door; the request workflow also honors
// approved future reservations. The asymmetry is deliberate: a pending or
// accepted request does not block the owner's instant borrow.
var (
	BorrowActiveSet  = []Status{StatusBorrowed}
	RequestActiveSet = []Status{StatusAccepted, StatusBorrowed}
)
