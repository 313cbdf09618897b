package locations

import (
	"fmt"
	"strings"

	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

func (s *Service) validate(l Location) error {
	if l.WarehouseID <= 0 {
		return fmt.Errorf("%w: warehouse is required", internalshared.ErrValidation)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: location name is required", internalshared.ErrValidation)
	}
	if strings.TrimSpace(l.Code) == "" {
		return fmt.Errorf("%w: location code is required", internalshared.ErrValidation)
	}
	if !ValidType(l.LocationType) {
		return fmt.Errorf("%w: unknown location type %q", internalshared.ErrValidation, l.LocationType)
	}
	return nil
}
