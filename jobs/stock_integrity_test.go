package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/stock"
)

type fakeReader struct {
	sums   map[[2]int64]float64
	levels []stock.StockLevel
}

func (r *fakeReader) LedgerSums(ctx context.Context) (map[[2]int64]float64, error) {
	return r.sums, nil
}

func (r *fakeReader) AllLevels(ctx context.Context) ([]stock.StockLevel, error) {
	return r.levels, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrityCleanLedger(t *testing.T) {
	reader := &fakeReader{
		sums: map[[2]int64]float64{
			{1, 10}: 5,
			{2, 10}: 0,
		},
		levels: []stock.StockLevel{
			{ProductID: 1, LocationID: 10, OnHandQuantity: 5},
		},
	}
	checker := NewIntegrityChecker(reader, discardLogger(), nil)

	drift, err := checker.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, drift)
}

func TestIntegrityDetectsDrift(t *testing.T) {
	reader := &fakeReader{
		sums: map[[2]int64]float64{
			{1, 10}: 5,
			{3, 11}: 2,
		},
		levels: []stock.StockLevel{
			{ProductID: 1, LocationID: 10, OnHandQuantity: 7},
			{ProductID: 2, LocationID: 10, OnHandQuantity: 1},
		},
	}
	checker := NewIntegrityChecker(reader, discardLogger(), nil)

	drift, err := checker.Run(context.Background())
	require.NoError(t, err)
	// Level ahead of ledger, level with no entries, and ledger pair with no
	// projection row.
	require.Equal(t, 3, drift)
}

func TestIntegrityToleratesFloatNoise(t *testing.T) {
	reader := &fakeReader{
		sums: map[[2]int64]float64{
			{1, 10}: 5.0001,
		},
		levels: []stock.StockLevel{
			{ProductID: 1, LocationID: 10, OnHandQuantity: 5.0},
		},
	}
	checker := NewIntegrityChecker(reader, discardLogger(), nil)

	drift, err := checker.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, drift)
}
