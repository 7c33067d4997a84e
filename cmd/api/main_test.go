package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamelend/account"
	"gamelend/game"
	"gamelend/organization"
	"gamelend/reservation"
)

type stubEngine struct {
	borrowRes  reservation.Reservation
	borrowErr  error
	returnRes  reservation.ReturnResult
	returnErr  error
	createRes  reservation.Reservation
	createErr  error
	respondRes reservation.RespondResult
	respondErr error
	pending    []reservation.PendingRequest
	pendingErr error

	lastBorrow  reservation.BorrowParams
	lastRespond reservation.RespondParams
}

func (s *stubEngine) Borrow(_ context.Context, params reservation.BorrowParams) (reservation.Reservation, error) {
	s.lastBorrow = params
	return s.borrowRes, s.borrowErr
}

func (s *stubEngine) Return(_ context.Context, _ reservation.ReturnParams) (reservation.ReturnResult, error) {
	return s.returnRes, s.returnErr
}

func (s *stubEngine) CreateRequest(_ context.Context, _ reservation.RequestParams) (reservation.Reservation, error) {
	return s.createRes, s.createErr
}

func (s *stubEngine) Respond(_ context.Context, params reservation.RespondParams) (reservation.RespondResult, error) {
	s.lastRespond = params
	return s.respondRes, s.respondErr
}

func (s *stubEngine) ListPending(_ context.Context, _ string) ([]reservation.PendingRequest, error) {
	return s.pending, s.pendingErr
}

type stubAccounts struct {
	verifyID   string
	verifyRole account.Role
	verifyErr  error
}

func (s *stubAccounts) Register(_ context.Context, _ account.RegisterRequest) (*account.Account, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAccounts) Login(_ context.Context, _ account.LoginRequest) (account.LoginResult, error) {
	return account.LoginResult{}, errors.New("not implemented")
}

func (s *stubAccounts) VerifyToken(_ string) (string, account.Role, error) {
	return s.verifyID, s.verifyRole, s.verifyErr
}

type stubCatalog struct {
	game    game.Game
	gameErr error
	games   []game.Game
	listErr error
}

func (s *stubCatalog) GetByID(_ context.Context, _ string) (game.Game, error) {
	return s.game, s.gameErr
}

func (s *stubCatalog) List(_ context.Context, _ int) ([]game.Game, error) {
	return s.games, s.listErr
}

func authed(req *http.Request, accountID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), ctxKeyAccountID, accountID))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHandleBorrow_Success(t *testing.T) {
	engine := &stubEngine{
		borrowRes: reservation.Reservation{
			ID: "res-1", GameID: "g1", HolderID: "owner-1",
			Interval: reservation.Interval{Start: day(2024, 3, 10), End: day(2024, 3, 15)},
			Status:   reservation.StatusBorrowed, FastPath: true,
			CreatedAt: day(2024, 3, 1),
		},
	}
	server := &Server{reservationService: engine}

	body := strings.NewReader(`{"start":"2024-03-10","end":"2024-03-15"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/games/g1/borrow", body), "owner-1")
	rec := httptest.NewRecorder()

	server.handleGameDetail(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp reservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "res-1" || resp.Status != "borrowed" || !resp.FastPath {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp.Start != "2024-03-10" || resp.End != "2024-03-15" {
		t.Fatalf("unexpected interval: %+v", resp)
	}

	// holder defaults to the authenticated actor
	if engine.lastBorrow.HolderID != "owner-1" || engine.lastBorrow.ActorID != "owner-1" {
		t.Fatalf("unexpected params: %+v", engine.lastBorrow)
	}
}

func TestHandleBorrow_Conflict(t *testing.T) {
	server := &Server{reservationService: &stubEngine{borrowErr: reservation.ErrOverlapping}}

	body := strings.NewReader(`{"start":"2024-03-10","end":"2024-03-15"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/games/g1/borrow", body), "owner-1")
	rec := httptest.NewRecorder()

	server.handleGameDetail(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleCreateRequest_BadDates(t *testing.T) {
	server := &Server{reservationService: &stubEngine{}}

	body := strings.NewReader(`{"start":"March 10","end":"2024-03-15"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/games/g1/requests", body), "user-1")
	rec := httptest.NewRecorder()

	server.handleGameDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleReturn_NoopOutcome(t *testing.T) {
	server := &Server{reservationService: &stubEngine{
		returnRes: reservation.ReturnResult{Outcome: reservation.ReturnOutcomeNotBorrowed, ReservationIDs: []string{}},
	}}

	req := authed(httptest.NewRequest(http.MethodPost, "/api/games/g1/return", strings.NewReader(`{}`)), "user-1")
	rec := httptest.NewRecorder()

	server.handleGameDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Outcome != "not_borrowed" {
		t.Fatalf("expected not_borrowed outcome, got %q", payload.Outcome)
	}
}

func TestHandleRespond_ConflictOutcome(t *testing.T) {
	engine := &stubEngine{
		respondRes: reservation.RespondResult{
			Reservation: reservation.Reservation{ID: "res-2", Status: reservation.StatusRejected},
			Outcome:     reservation.OutcomeConflict,
		},
	}
	server := &Server{reservationService: engine}

	req := authed(httptest.NewRequest(http.MethodPost, "/api/requests/res-2/respond", strings.NewReader(`{"approve":true}`)), "owner-1")
	rec := httptest.NewRecorder()

	server.handleRequestDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Outcome     string              `json:"outcome"`
		Reservation reservationResponse `json:"reservation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Outcome != "conflict" || payload.Reservation.Status != "rejected" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if engine.lastRespond.ReservationID != "res-2" || !engine.lastRespond.Approve {
		t.Fatalf("unexpected params: %+v", engine.lastRespond)
	}
}

func TestHandleRespond_Forbidden(t *testing.T) {
	server := &Server{reservationService: &stubEngine{respondErr: reservation.ErrForbidden}}

	req := authed(httptest.NewRequest(http.MethodPost, "/api/requests/res-2/respond", strings.NewReader(`{"approve":true}`)), "mallory")
	rec := httptest.NewRecorder()

	server.handleRequestDetail(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleRespond_InvalidPath(t *testing.T) {
	server := &Server{reservationService: &stubEngine{}}

	req := authed(httptest.NewRequest(http.MethodPost, "/api/requests/res-2/cancel", nil), "owner-1")
	rec := httptest.NewRecorder()

	server.handleRequestDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRequests_List(t *testing.T) {
	server := &Server{reservationService: &stubEngine{
		pending: []reservation.PendingRequest{
			{
				Reservation: reservation.Reservation{
					ID: "res-1", GameID: "g1", HolderID: "alice",
					Interval: reservation.Interval{Start: day(2024, 3, 10), End: day(2024, 3, 15)},
					Status:   reservation.StatusPending,
				},
				GameName: "Catan",
			},
		},
	}}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/requests", nil), "owner-1")
	rec := httptest.NewRecorder()

	server.handleRequests(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Items []pendingResponse `json:"items"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 1 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Items[0].GameName != "Catan" || payload.Items[0].Status != "pending" {
		t.Fatalf("unexpected item: %+v", payload.Items[0])
	}
}

func TestHandleGameDetail_NotFound(t *testing.T) {
	server := &Server{gameService: &stubCatalog{gameErr: game.ErrNotFound}}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/games/missing", nil), "user-1")
	rec := httptest.NewRecorder()

	server.handleGameDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

type stubOrgs struct {
	org     organization.Organization
	orgErr  error
	orgs    []organization.Organization
	listErr error
}

func (s *stubOrgs) GetByID(_ context.Context, _ string) (organization.Organization, error) {
	return s.org, s.orgErr
}

func (s *stubOrgs) List(_ context.Context, _ int) ([]organization.Organization, error) {
	return s.orgs, s.listErr
}

func TestHandleOrgs_List(t *testing.T) {
	server := &Server{orgService: &stubOrgs{
		orgs: []organization.Organization{{ID: "org-1", Name: "Board Game Club", CreatedAt: day(2024, 1, 1)}},
	}}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/orgs", nil), "user-1")
	rec := httptest.NewRecorder()

	server.handleOrgs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Items []orgResponse `json:"items"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 1 || payload.Items[0].Name != "Board Game Club" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleOrgDetail_NotFound(t *testing.T) {
	server := &Server{orgService: &stubOrgs{orgErr: organization.ErrNotFound}}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/orgs/missing", nil), "user-1")
	rec := httptest.NewRecorder()

	server.handleOrgDetail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWithAuth(t *testing.T) {
	accounts := &stubAccounts{verifyID: "acc-1", verifyRole: account.RoleMember}
	server := &Server{accountService: accounts}

	var gotActor string
	handler := server.withAuth(func(w http.ResponseWriter, r *http.Request) {
		gotActor = actorID(r)
		w.WriteHeader(http.StatusOK)
	})

	// no token
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// valid token
	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if gotActor != "acc-1" {
		t.Fatalf("expected actor acc-1, got %q", gotActor)
	}

	// rejected token
	accounts.verifyErr = errors.New("expired")
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}
