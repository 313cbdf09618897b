package stock

import "context"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error)
	ListLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, int, error)
}

// Service serves ledger and stock level reads.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service. The cache is optional.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Ledger lists ledger entries.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, int, error) {
	return s.repo.ListLedger(ctx, filter)
}

// Levels lists stock levels, read-through cached.
func (s *Service) Levels(ctx context.Context, filter LevelFilter) ([]StockLevel, int, error) {
	if levels, total, ok := s.cache.GetLevels(ctx, filter); ok {
		return levels, total, nil
	}
	levels, total, err := s.repo.ListLevels(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	s.cache.SetLevels(ctx, filter, levels, total)
	return levels, total, nil
}
