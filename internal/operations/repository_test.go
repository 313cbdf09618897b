package operations

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestWithTxRetriesSnapshotConflict(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}

	calls := 0
	err := withTxRetry(func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("run tx: %w", serialization)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01"}

	calls := 0
	err := withTxRetry(func() error {
		calls++
		return deadlock
	})
	require.ErrorAs(t, err, new(*pgconn.PgError))
	require.Equal(t, maxTxAttempts, calls)
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	shortfall := &InsufficientStockError{ProductID: 1, LocationID: 10, Requested: 5, Available: 2}

	calls := 0
	err := withTxRetry(func() error {
		calls++
		return shortfall
	})
	require.ErrorAs(t, err, new(*InsufficientStockError))
	require.Equal(t, 1, calls)

	calls = 0
	require.NoError(t, withTxRetry(func() error {
		calls++
		return nil
	}))
	require.Equal(t, 1, calls)
}
