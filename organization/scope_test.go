package organization

import (
	"context"
	"errors"
	"testing"

	"gamelend/game"
)

type stubMemberships struct {
	orgs map[string][]string
	err  error
}

func (s *stubMemberships) AdminOrgsFor(_ context.Context, accountID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orgs[accountID], nil
}

func TestScopeFor_SelfPlusAdminOrgs(t *testing.T) {
	resolver := NewScopeResolver(&stubMemberships{
		orgs: map[string][]string{
			"acc-1": {"org-a", "org-b"},
		},
	})

	scope, err := resolver.ScopeFor(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scope.AccountIDs) != 1 || scope.AccountIDs[0] != "acc-1" {
		t.Fatalf("expected own account in scope, got %v", scope.AccountIDs)
	}
	if len(scope.OrgIDs) != 2 {
		t.Fatalf("expected two administered orgs, got %v", scope.OrgIDs)
	}

	if !scope.Contains(game.Owner{Kind: game.OwnerAccount, ID: "acc-1"}) {
		t.Error("expected scope to contain own account")
	}
	if !scope.Contains(game.Owner{Kind: game.OwnerOrganization, ID: "org-b"}) {
		t.Error("expected scope to contain administered org")
	}
	if scope.Contains(game.Owner{Kind: game.OwnerAccount, ID: "acc-2"}) {
		t.Error("scope must not contain other accounts")
	}
	if scope.Contains(game.Owner{Kind: game.OwnerOrganization, ID: "org-c"}) {
		t.Error("scope must not contain non-administered orgs")
	}
}

func TestScopeFor_NoMemberships(t *testing.T) {
	resolver := NewScopeResolver(&stubMemberships{orgs: map[string][]string{}})

	scope, err := resolver.ScopeFor(context.Background(), "acc-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scope.OrgIDs) != 0 {
		t.Fatalf("expected no orgs, got %v", scope.OrgIDs)
	}
	if !scope.Contains(game.Owner{Kind: game.OwnerAccount, ID: "acc-9"}) {
		t.Error("own account must always be in scope")
	}
}

func TestScopeFor_Errors(t *testing.T) {
	if _, err := NewScopeResolver(&stubMemberships{}).ScopeFor(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty account id")
	}

	boom := errors.New("boom")
	if _, err := NewScopeResolver(&stubMemberships{err: boom}).ScopeFor(context.Background(), "acc-1"); !errors.Is(err, boom) {
		t.Fatalf("expected directory error to propagate, got %v", err)
	}
}
