package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	internalshared "github.com/stockmaster/stockmaster/internal/shared"
)

// Postgres error codes surfaced as domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// TranslatePGError converts constraint violations into domain errors so callers
// never see raw database errors for expected conflicts.
func TranslatePGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", internalshared.ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", internalshared.ErrInUse, pgErr.ConstraintName)
		}
	}
	return err
}
