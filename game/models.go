package game

import "time"

// OwnerKind discriminates the two kinds of identities that can own a game.
type OwnerKind string

const (
	OwnerAccount      OwnerKind = "account"
	OwnerOrganization OwnerKind = "organization"
)

// Owner is the tagged union identifying who controls a game: the direct-borrow
// path and request approval are reserved for this identity (or, for
// organization owners, its admin members).
type Owner struct {
	Kind OwnerKind
	ID   string
}

// Scope is the set of owner identities an account may act on behalf of when
// approving requests: the account itself plus every organization it
// administers.
type Scope struct {
	AccountIDs []string
	OrgIDs     []string
}

// Contains reports whether the owner falls inside the scope.
func (s Scope) Contains(owner Owner) bool {
	var ids []string
	switch owner.Kind {
	case OwnerAccount:
		ids = s.AccountIDs
	case OwnerOrganization:
		ids = s.OrgIDs
	default:
		return false
	}
	for _, id := range ids {
		if id == owner.ID {
			return true
		}
	}
	return false
}

// Game is the borrowable unit, identified independently of its reservations.
type Game struct {
	ID        string
	Name      string
	Platform  *string
	Owner     Owner
	CreatedAt time.Time
	UpdatedAt time.Time
}
