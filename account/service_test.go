package account

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "supersafe",
		FullName: "Alice Member",
	}

	ctx := context.Background()
	acc, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if acc.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, acc.Email)
	}
	if acc.Role != RoleMember {
		t.Fatalf("register: expected default role %s got %s", RoleMember, acc.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.Account.ID != acc.ID {
		t.Fatalf("login: expected account id %q got %q", acc.ID, resp.Account.ID)
	}

	tokenAccountID, tokenRole, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if tokenAccountID != acc.ID {
		t.Fatalf("verify token: expected %q got %q", acc.ID, tokenAccountID)
	}
	if tokenRole != RoleMember {
		t.Fatalf("verify token: expected role %s got %s", RoleMember, tokenRole)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
		FullName: "Alice Member",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Member",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginWrongPassword(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "bob@example.com",
		Password: "strongpassword",
		FullName: "Bob Member",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: req.Email, Password: "wrongpassword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestService_GetByExternalID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	acc, err := svc.Register(context.Background(), RegisterRequest{
		Email:      "carol@example.com",
		Password:   "strongpassword",
		FullName:   "Carol Member",
		ExternalID: "idp|carol",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	found, err := svc.GetByExternalID(context.Background(), "idp|carol")
	if err != nil {
		t.Fatalf("get by external id: %v", err)
	}
	if found.ID != acc.ID {
		t.Fatalf("expected account %q got %q", acc.ID, found.ID)
	}

	if _, err := svc.GetByExternalID(context.Background(), "idp|missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeRepository struct {
	byEmail map[string]Account
	nextID  int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byEmail: make(map[string]Account)}
}

func (f *fakeRepository) Create(_ context.Context, params CreateParams) (Account, error) {
	if _, ok := f.byEmail[params.Email]; ok {
		return Account{}, ErrDuplicateEmail
	}
	f.nextID++
	acc := Account{
		ID:           fmt.Sprintf("acc-%d", f.nextID),
		ExternalID:   params.ExternalID,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.byEmail[params.Email] = acc
	return acc, nil
}

func (f *fakeRepository) GetByEmail(_ context.Context, email string) (Account, error) {
	acc, ok := f.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (f *fakeRepository) GetByID(_ context.Context, id string) (Account, error) {
	for _, acc := range f.byEmail {
		if acc.ID == id {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (f *fakeRepository) GetByExternalID(_ context.Context, externalID string) (Account, error) {
	for _, acc := range f.byEmail {
		if acc.ExternalID != nil && *acc.ExternalID == externalID {
			return acc, nil
		}
	}
	return Account{}, ErrNotFound
}
