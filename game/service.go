package game

import "context"

// CatalogReader abstracts repository operations for the service.
type CatalogReader interface {
	GetByID(ctx context.Context, id string) (Game, error)
	List(ctx context.Context, limit int) ([]Game, error)
	OwnerOf(ctx context.Context, id string) (Owner, error)
}

// Service exposes business-level catalog operations.
type Service struct {
	repo CatalogReader
}

// NewService builds a Service using the provided repository.
func NewService(repo CatalogReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the game for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Game, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit games.
func (s *Service) List(ctx context.Context, limit int) ([]Game, error) {
	return s.repo.List(ctx, limit)
}

// OwnerOf resolves the owning identity of a game.
func (s *Service) OwnerOf(ctx context.Context, id string) (Owner, error) {
	return s.repo.OwnerOf(ctx, id)
}
