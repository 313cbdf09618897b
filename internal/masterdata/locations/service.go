package locations

import (
	"context"
	"fmt"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("%w: invalid location id", internalshared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	return s.repo.Create(ctx, location)
}

func (s *Service) Update(ctx context.Context, id int64, location Location) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("%w: invalid location id", internalshared.ErrValidation)
	}
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	if err := s.repo.Update(ctx, id, location); err != nil {
		return Location{}, err
	}
	location.ID = id
	return location, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid location id", internalshared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
