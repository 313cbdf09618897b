package units

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, fmt.Errorf("%w: invalid unit id", internalshared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, unit Unit) (Unit, error) {
	if err := s.validate(unit); err != nil {
		return Unit{}, err
	}
	return s.repo.Create(ctx, unit)
}

func (s *Service) Update(ctx context.Context, id int64, unit Unit) (Unit, error) {
	if id <= 0 {
		return Unit{}, fmt.Errorf("%w: invalid unit id", internalshared.ErrValidation)
	}
	if err := s.validate(unit); err != nil {
		return Unit{}, err
	}
	if err := s.repo.Update(ctx, id, unit); err != nil {
		return Unit{}, err
	}
	unit.ID = id
	return unit, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid unit id", internalshared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: unit name is required", internalshared.ErrValidation)
	}
	if strings.TrimSpace(u.Symbol) == "" {
		return fmt.Errorf("%w: unit symbol is required", internalshared.ErrValidation)
	}
	if len(u.Symbol) > 10 {
		return fmt.Errorf("%w: unit symbol exceeds 10 characters", internalshared.ErrValidation)
	}
	return nil
}
