package optypes

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]OperationType, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (OperationType, error) {
	if id <= 0 {
		return OperationType{}, fmt.Errorf("%w: invalid operation type id", internalshared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, ot OperationType) (OperationType, error) {
	ot.Code = strings.ToUpper(strings.TrimSpace(ot.Code))
	if err := s.validate(ot); err != nil {
		return OperationType{}, err
	}
	return s.repo.Create(ctx, ot)
}

func (s *Service) Update(ctx context.Context, id int64, ot OperationType) (OperationType, error) {
	if id <= 0 {
		return OperationType{}, fmt.Errorf("%w: invalid operation type id", internalshared.ErrValidation)
	}
	ot.Code = strings.ToUpper(strings.TrimSpace(ot.Code))
	if err := s.validate(ot); err != nil {
		return OperationType{}, err
	}
	if err := s.repo.Update(ctx, id, ot); err != nil {
		return OperationType{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid operation type id", internalshared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) validate(ot OperationType) error {
	if ot.Code == "" {
		return fmt.Errorf("%w: operation type code is required", internalshared.ErrValidation)
	}
	if !KnownCode(ot.Code) {
		return fmt.Errorf("%w: operation type code must be one of RECEIPT, DELIVERY, TRANSFER, ADJUSTMENT", internalshared.ErrValidation)
	}
	if strings.TrimSpace(ot.Name) == "" {
		return fmt.Errorf("%w: operation type name is required", internalshared.ErrValidation)
	}
	if len(ot.Name) > 100 {
		return fmt.Errorf("%w: operation type name exceeds 100 characters", internalshared.ErrValidation)
	}
	return nil
}
