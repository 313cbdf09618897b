package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, fmt.Errorf("%w: invalid category id", internalshared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, category Category) (Category, error) {
	if id <= 0 {
		return Category{}, fmt.Errorf("%w: invalid category id", internalshared.ErrValidation)
	}
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	if err := s.repo.Update(ctx, id, category); err != nil {
		return Category{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid category id", internalshared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", internalshared.ErrValidation)
	}
	if len(c.Name) > 100 {
		return fmt.Errorf("%w: category name exceeds 100 characters", internalshared.ErrValidation)
	}
	return nil
}
