package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gamelend/account"
	"gamelend/game"
	"gamelend/organization"
	"gamelend/reservation"
)

type ctxKey string

const (
	ctxKeyAccountID ctxKey = "accountID"
	ctxKeyRole      ctxKey = "role"
)

const dayLayout = "2006-01-02"

type accountService interface {
	Register(ctx context.Context, req account.RegisterRequest) (*account.Account, error)
	Login(ctx context.Context, req account.LoginRequest) (account.LoginResult, error)
	VerifyToken(token string) (string, account.Role, error)
}

type gameCatalog interface {
	GetByID(ctx context.Context, id string) (game.Game, error)
	List(ctx context.Context, limit int) ([]game.Game, error)
}

type orgDirectory interface {
	GetByID(ctx context.Context, id string) (organization.Organization, error)
	List(ctx context.Context, limit int) ([]organization.Organization, error)
}

type reservationEngine interface {
	Borrow(ctx context.Context, params reservation.BorrowParams) (reservation.Reservation, error)
	Return(ctx context.Context, params reservation.ReturnParams) (reservation.ReturnResult, error)
	CreateRequest(ctx context.Context, params reservation.RequestParams) (reservation.Reservation, error)
	Respond(ctx context.Context, params reservation.RespondParams) (reservation.RespondResult, error)
	ListPending(ctx context.Context, actorID string) ([]reservation.PendingRequest, error)
}

// Server holds the HTTP handlers and their service dependencies.
type Server struct {
	log                *slog.Logger
	accountService     accountService
	gameService        gameCatalog
	orgService         orgDirectory
	reservationService reservationEngine
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/games", s.withAuth(s.handleGames))
	mux.HandleFunc("/api/games/", s.withAuth(s.handleGameDetail))
	mux.HandleFunc("/api/orgs", s.withAuth(s.handleOrgs))
	mux.HandleFunc("/api/orgs/", s.withAuth(s.handleOrgDetail))
	mux.HandleFunc("/api/requests", s.withAuth(s.handleRequests))
	mux.HandleFunc("/api/requests/", s.withAuth(s.handleRequestDetail))
	return mux
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		accountID, role, err := s.accountService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyAccountID, accountID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next(w, r.WithContext(ctx))
	}
}

func actorID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyAccountID).(string)
	return id
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func toAccountResponse(acc account.Account) accountResponse {
	return accountResponse{
		ID:        acc.ID,
		Email:     acc.Email,
		FullName:  acc.FullName,
		Role:      string(acc.Role),
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req account.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	acc, err := s.accountService.Register(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(*acc))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req account.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.accountService.Login(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   result.Token,
		"account": toAccountResponse(result.Account),
	})
}

type gameResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Platform  *string `json:"platform,omitempty"`
	OwnerKind string  `json:"ownerKind"`
	OwnerID   string  `json:"ownerId"`
	CreatedAt string  `json:"createdAt"`
}

func toGameResponse(g game.Game) gameResponse {
	return gameResponse{
		ID:        g.ID,
		Name:      g.Name,
		Platform:  g.Platform,
		OwnerKind: string(g.Owner.Kind),
		OwnerID:   g.Owner.ID,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	games, err := s.gameService.List(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]gameResponse, 0, len(games))
	for _, g := range games {
		items = append(items, toGameResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// handleGameDetail serves /api/games/{id} and the reservation actions nested
// under a game: /api/games/{id}/borrow, /return, /requests.
func (s *Server) handleGameDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/games/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	gameID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		g, err := s.gameService.GetByID(r.Context(), gameID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGameResponse(g))
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch parts[1] {
	case "borrow":
		s.handleBorrow(w, r, gameID)
	case "return":
		s.handleReturn(w, r, gameID)
	case "requests":
		s.handleCreateRequest(w, r, gameID)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

type intervalRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (ir intervalRequest) toInterval() (reservation.Interval, error) {
	start, err := time.Parse(dayLayout, ir.Start)
	if err != nil {
		return reservation.Interval{}, err
	}
	end, err := time.Parse(dayLayout, ir.End)
	if err != nil {
		return reservation.Interval{}, err
	}
	return reservation.Interval{Start: start, End: end}, nil
}

type reservationResponse struct {
	ID        string `json:"id"`
	GameID    string `json:"gameId"`
	HolderID  string `json:"holderId"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Status    string `json:"status"`
	FastPath  bool   `json:"fastPath"`
	CreatedAt string `json:"createdAt"`
}

func toReservationResponse(res reservation.Reservation) reservationResponse {
	return reservationResponse{
		ID:        res.ID,
		GameID:    res.GameID,
		HolderID:  res.HolderID,
		Start:     res.Interval.Start.Format(dayLayout),
		End:       res.Interval.End.Format(dayLayout),
		Status:    string(res.Status),
		FastPath:  res.FastPath,
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request, gameID string) {
	var body struct {
		intervalRequest
		HolderID string `json:"holderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	iv, err := body.toInterval()
	if err != nil {
		writeError(w, http.StatusBadRequest, "dates must be formatted as YYYY-MM-DD")
		return
	}

	actor := actorID(r)
	holder := body.HolderID
	if holder == "" {
		holder = actor
	}

	res, err := s.reservationService.Borrow(r.Context(), reservation.BorrowParams{
		GameID:   gameID,
		HolderID: holder,
		ActorID:  actor,
		Interval: iv,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request, gameID string) {
	var body struct {
		HolderID string `json:"holderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	actor := actorID(r)
	holder := body.HolderID
	if holder == "" {
		holder = actor
	}

	result, err := s.reservationService.Return(r.Context(), reservation.ReturnParams{
		GameID:   gameID,
		HolderID: holder,
		ActorID:  actor,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":        string(result.Outcome),
		"reservationIds": result.ReservationIDs,
	})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request, gameID string) {
	var body intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	iv, err := body.toInterval()
	if err != nil {
		writeError(w, http.StatusBadRequest, "dates must be formatted as YYYY-MM-DD")
		return
	}

	res, err := s.reservationService.CreateRequest(r.Context(), reservation.RequestParams{
		GameID:   gameID,
		HolderID: actorID(r),
		Interval: iv,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

type orgResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func toOrgResponse(org organization.Organization) orgResponse {
	return orgResponse{
		ID:        org.ID,
		Name:      org.Name,
		CreatedAt: org.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleOrgs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orgs, err := s.orgService.List(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]orgResponse, 0, len(orgs))
	for _, org := range orgs {
		items = append(items, toOrgResponse(org))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleOrgDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orgs/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	org, err := s.orgService.GetByID(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrgResponse(org))
}

type pendingResponse struct {
	reservationResponse
	GameName string `json:"gameName"`
}

// handleRequests lists the pending requests the caller may respond to.
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pending, err := s.reservationService.ListPending(r.Context(), actorID(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	items := make([]pendingResponse, 0, len(pending))
	for _, pr := range pending {
		items = append(items, pendingResponse{
			reservationResponse: toReservationResponse(pr.Reservation),
			GameName:            pr.GameName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// handleRequestDetail serves /api/requests/{id}/respond.
func (s *Server) handleRequestDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/requests/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "respond" {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.reservationService.Respond(r.Context(), reservation.RespondParams{
		ReservationID: parts[0],
		ActorID:       actorID(r),
		Approve:       body.Approve,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":     string(result.Outcome),
		"reservation": toReservationResponse(result.Reservation),
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, reservation.ErrGameNotFound),
		errors.Is(err, game.ErrNotFound),
		errors.Is(err, organization.ErrNotFound),
		errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrOverlapping),
		errors.Is(err, reservation.ErrAlreadyResponded),
		errors.Is(err, account.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrInvertedInterval),
		errors.Is(err, reservation.ErrIntervalInPast),
		errors.Is(err, account.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservation.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		if s.log != nil {
			s.log.Error("request failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
