package warehouses

import (
	"fmt"
	"strings"

	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

func (s *Service) validate(w Warehouse) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: warehouse name is required", internalshared.ErrValidation)
	}
	if strings.TrimSpace(w.Code) == "" {
		return fmt.Errorf("%w: warehouse code is required", internalshared.ErrValidation)
	}
	if len(w.Name) > 150 {
		return fmt.Errorf("%w: warehouse name exceeds 150 characters", internalshared.ErrValidation)
	}
	if len(w.Code) > 50 {
		return fmt.Errorf("%w: warehouse code exceeds 50 characters", internalshared.ErrValidation)
	}
	return nil
}
