package products

import (
	"fmt"
	"strings"

	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", internalshared.ErrValidation)
	}
	if strings.TrimSpace(p.SKUCode) == "" {
		return fmt.Errorf("%w: sku code is required", internalshared.ErrValidation)
	}
	if p.UomID <= 0 {
		return fmt.Errorf("%w: unit of measure is required", internalshared.ErrValidation)
	}
	if p.CategoryID != nil && *p.CategoryID <= 0 {
		return fmt.Errorf("%w: invalid category", internalshared.ErrValidation)
	}
	if p.SalePrice < 0 {
		return fmt.Errorf("%w: sale price must be >= 0", internalshared.ErrValidation)
	}
	if p.Cost < 0 {
		return fmt.Errorf("%w: cost must be >= 0", internalshared.ErrValidation)
	}
	return nil
}
