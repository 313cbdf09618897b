package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockmaster/stockmaster/internal/jobs"
	"github.com/stockmaster/stockmaster/internal/stock"
)

// Drift below this threshold is float noise from NUMERIC(10,3) scanning.
const driftTolerance = 0.0005

// StockReader is the slice of the stock repository the audit needs.
type StockReader interface {
	LedgerSums(ctx context.Context) (map[[2]int64]float64, error)
	AllLevels(ctx context.Context) ([]stock.StockLevel, error)
}

// IntegrityChecker compares the stock level projection against the running
// ledger sums. The ledger is the source of truth; any drift means a write
// path updated one side without the other.
type IntegrityChecker struct {
	reader  StockReader
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIntegrityChecker constructs IntegrityChecker.
func NewIntegrityChecker(reader StockReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityChecker {
	return &IntegrityChecker{reader: reader, logger: logger, metrics: metrics}
}

// Run performs one audit pass and returns the number of drifting pairs.
func (c *IntegrityChecker) Run(ctx context.Context) (int, error) {
	tracker := c.metrics.Track("stock_integrity")

	sums, err := c.reader.LedgerSums(ctx)
	if err != nil {
		return 0, tracker.End(err)
	}
	levels, err := c.reader.AllLevels(ctx)
	if err != nil {
		return 0, tracker.End(err)
	}

	drift := 0
	seen := make(map[[2]int64]bool, len(levels))
	for _, level := range levels {
		pair := [2]int64{level.ProductID, level.LocationID}
		seen[pair] = true
		expected := sums[pair]
		if math.Abs(expected-level.OnHandQuantity) > driftTolerance {
			drift++
			c.reportDrift(level.ProductID, level.LocationID, expected, level.OnHandQuantity)
		}
	}
	// Ledger pairs with no projection row drift unless they sum to zero.
	for pair, expected := range sums {
		if seen[pair] || math.Abs(expected) <= driftTolerance {
			continue
		}
		drift++
		c.reportDrift(pair[0], pair[1], expected, 0)
	}

	if c.logger != nil {
		c.logger.Info("stock integrity audit finished",
			slog.Int("levels", len(levels)),
			slog.Int("drifting_pairs", drift))
	}
	return drift, tracker.End(nil)
}

func (c *IntegrityChecker) reportDrift(productID, locationID int64, expected, actual float64) {
	if c.logger != nil {
		c.logger.Error("stock level drifts from ledger",
			slog.Int64("product_id", productID),
			slog.Int64("location_id", locationID),
			slog.Float64("ledger_sum", expected),
			slog.Float64("on_hand_quantity", actual))
	}
	c.metrics.AddDrift(productID, locationID)
}

// HandlerFunc adapts the checker to an asynq handler.
func (c *IntegrityChecker) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := c.Run(ctx)
		return err
	}
}
