package organization

import (
	"context"
	"fmt"

	"gamelend/game"
)

// MembershipReader abstracts the directory lookups the resolver depends on.
type MembershipReader interface {
	AdminOrgsFor(ctx context.Context, accountID string) ([]string, error)
}

// ScopeResolver computes the set of owner identities an account may act on
// behalf of when approving reservation requests: the account itself plus
// every organization where the account is a recorded admin.
type ScopeResolver struct {
	repo MembershipReader
}

// NewScopeResolver builds a resolver over the membership directory.
func NewScopeResolver(repo MembershipReader) *ScopeResolver {
	return &ScopeResolver{repo: repo}
}

// ScopeFor resolves the approval scope of the acting account. Pure read; no
// caching beyond what the directory provides.
func (s *ScopeResolver) ScopeFor(ctx context.Context, accountID string) (game.Scope, error) {
	if accountID == "" {
		return game.Scope{}, fmt.Errorf("organization: scope missing account id")
	}

	orgIDs, err := s.repo.AdminOrgsFor(ctx, accountID)
	if err != nil {
		return game.Scope{}, err
	}

	return game.Scope{
		AccountIDs: []string{accountID},
		OrgIDs:     orgIDs,
	}, nil
}
