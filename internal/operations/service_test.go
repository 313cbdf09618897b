package operations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stockmaster/stockmaster/internal/masterdata/locations"
	"github.com/stockmaster/stockmaster/internal/stock"
)

type memoryRepo struct {
	mu          sync.Mutex
	ops         map[int64]Operation
	locs        map[int64]LocationInfo
	types       map[int64]string
	levels      map[string]stock.StockLevel
	ledger      []stock.LedgerEntry
	nextOpID    int64
	nextLineID  int64
	nextEntryID int64
	seq         int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		ops:    make(map[int64]Operation),
		locs:   make(map[int64]LocationInfo),
		types:  make(map[int64]string),
		levels: make(map[string]stock.StockLevel),
	}
}

func levelKey(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}

type memoryTx struct {
	repo *memoryRepo
}

// WithTx serializes callers and restores a snapshot on error, mirroring the
// atomicity of the database transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opsSnap := make(map[int64]Operation, len(r.ops))
	for k, v := range r.ops {
		lines := make([]Line, len(v.Lines))
		copy(lines, v.Lines)
		v.Lines = lines
		opsSnap[k] = v
	}
	levelsSnap := make(map[string]stock.StockLevel, len(r.levels))
	for k, v := range r.levels {
		levelsSnap[k] = v
	}
	ledgerSnap := make([]stock.LedgerEntry, len(r.ledger))
	copy(ledgerSnap, r.ledger)

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.ops = opsSnap
		r.levels = levelsSnap
		r.ledger = ledgerSnap
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *memoryRepo) getLocked(id int64) (Operation, error) {
	op, ok := r.ops[id]
	if !ok {
		return Operation{}, fmt.Errorf("operation %d: not found", id)
	}
	lines := make([]Line, len(op.Lines))
	copy(lines, op.Lines)
	op.Lines = lines
	return op, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Operation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Operation
	for _, op := range r.ops {
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		if filter.TypeCode != "" && op.TypeCode != filter.TypeCode {
			continue
		}
		result = append(result, op)
	}
	return result, len(result), nil
}

func (r *memoryRepo) GetLocation(ctx context.Context, id int64) (LocationInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locs[id]
	if !ok {
		return LocationInfo{}, fmt.Errorf("location %d: not found", id)
	}
	return loc, nil
}

func (r *memoryRepo) GetOperationTypeCode(ctx context.Context, typeID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.types[typeID]
	if !ok {
		return "", fmt.Errorf("operation type %d: not found", typeID)
	}
	return code, nil
}

func (r *memoryRepo) AvailableQuantity(ctx context.Context, productID, locationID int64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[levelKey(productID, locationID)].OnHandQuantity, nil
}

func (tx *memoryTx) NextOperationNumber(ctx context.Context, typeCode string) (string, error) {
	tx.repo.seq++
	return FormatOperationNumber(typeCode, tx.repo.seq), nil
}

func (tx *memoryTx) InsertOperation(ctx context.Context, op Operation) (int64, error) {
	tx.repo.nextOpID++
	op.ID = tx.repo.nextOpID
	tx.repo.ops[op.ID] = op
	return op.ID, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, operationID int64, lines []Line) error {
	op := tx.repo.ops[operationID]
	for _, l := range lines {
		tx.repo.nextLineID++
		l.ID = tx.repo.nextLineID
		l.OperationID = operationID
		op.Lines = append(op.Lines, l)
	}
	tx.repo.ops[operationID] = op
	return nil
}

func (tx *memoryTx) UpdateDraft(ctx context.Context, op Operation) error {
	stored := tx.repo.ops[op.ID]
	stored.SourceLocationID = op.SourceLocationID
	stored.DestinationLocationID = op.DestinationLocationID
	stored.ScheduledDate = op.ScheduledDate
	stored.ResponsibleUserID = op.ResponsibleUserID
	stored.Notes = op.Notes
	tx.repo.ops[op.ID] = stored
	return nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, operationID int64, lines []Line) error {
	op := tx.repo.ops[operationID]
	op.Lines = nil
	tx.repo.ops[operationID] = op
	return tx.InsertLines(ctx, operationID, lines)
}

func (tx *memoryTx) GetOperation(ctx context.Context, id int64) (Operation, error) {
	return tx.repo.getLocked(id)
}

func (tx *memoryTx) GetLocation(ctx context.Context, id int64) (LocationInfo, error) {
	loc, ok := tx.repo.locs[id]
	if !ok {
		return LocationInfo{}, fmt.Errorf("location %d: not found", id)
	}
	return loc, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	op := tx.repo.ops[id]
	op.Status = status
	tx.repo.ops[id] = op
	return nil
}

func (tx *memoryTx) StampValidated(ctx context.Context, id int64, at time.Time) error {
	op := tx.repo.ops[id]
	op.ValidatedAt = &at
	tx.repo.ops[id] = op
	return nil
}

func (tx *memoryTx) SetLineProcessed(ctx context.Context, lineID int64, qty float64) error {
	for opID, op := range tx.repo.ops {
		for i, l := range op.Lines {
			if l.ID == lineID {
				op.Lines[i].ProcessedQuantity = qty
				tx.repo.ops[opID] = op
				return nil
			}
		}
	}
	return fmt.Errorf("line %d: not found", lineID)
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry stock.LedgerEntry) (int64, error) {
	tx.repo.nextEntryID++
	entry.ID = tx.repo.nextEntryID
	tx.repo.ledger = append(tx.repo.ledger, entry)
	return entry.ID, nil
}

func (tx *memoryTx) GetStockLevelForUpdate(ctx context.Context, productID, locationID int64) (stock.StockLevel, error) {
	if level, ok := tx.repo.levels[levelKey(productID, locationID)]; ok {
		return level, nil
	}
	return stock.StockLevel{ProductID: productID, LocationID: locationID}, stock.ErrLevelNotFound
}

func (tx *memoryTx) UpsertStockLevel(ctx context.Context, level stock.StockLevel) error {
	tx.repo.levels[levelKey(level.ProductID, level.LocationID)] = level
	return nil
}

func (tx *memoryTx) LedgerEntriesForOperation(ctx context.Context, operationID int64) ([]stock.LedgerEntry, error) {
	var entries []stock.LedgerEntry
	for _, e := range tx.repo.ledger {
		if e.OperationID != nil && *e.OperationID == operationID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

const (
	typeReceipt    = int64(1)
	typeDelivery   = int64(2)
	typeTransfer   = int64(3)
	typeAdjustment = int64(4)

	locStockA   = int64(10)
	locStockB   = int64(11)
	locSupplier = int64(20)
	locCustomer = int64(21)
	locTransit  = int64(22)
)

func newFixture() (*memoryRepo, *Service) {
	repo := newMemoryRepo()
	repo.types[typeReceipt] = "RECEIPT"
	repo.types[typeDelivery] = "DELIVERY"
	repo.types[typeTransfer] = "TRANSFER"
	repo.types[typeAdjustment] = "ADJUSTMENT"
	repo.locs[locStockA] = LocationInfo{ID: locStockA, WarehouseID: 1, LocationType: locations.TypeStock}
	repo.locs[locStockB] = LocationInfo{ID: locStockB, WarehouseID: 2, LocationType: locations.TypeStock}
	repo.locs[locSupplier] = LocationInfo{ID: locSupplier, WarehouseID: 1, LocationType: locations.TypeSupplier}
	repo.locs[locCustomer] = LocationInfo{ID: locCustomer, WarehouseID: 1, LocationType: locations.TypeCustomer}
	repo.locs[locTransit] = LocationInfo{ID: locTransit, WarehouseID: 1, LocationType: locations.TypeTransit}
	svc := NewService(repo, nil, nil, nil, nil, nil)
	return repo, svc
}

func ptr(v int64) *int64 { return &v }

func validateAll(t *testing.T, svc *Service, id int64) Operation {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Confirm(ctx, id, 0)
	require.NoError(t, err)
	_, err = svc.MarkReady(ctx, id, 0)
	require.NoError(t, err)
	op, err := svc.Validate(ctx, id, ValidateInput{})
	require.NoError(t, err)
	return op
}

func seedStock(t *testing.T, svc *Service, productID, locationID int64, qty float64) {
	t.Helper()
	op, err := svc.Create(context.Background(), CreateInput{
		OperationTypeID:       typeReceipt,
		SourceLocationID:      ptr(locSupplier),
		DestinationLocationID: ptr(locationID),
		Lines:                 []LineInput{{ProductID: productID, UomID: 1, RequestedQuantity: qty}},
	})
	require.NoError(t, err)
	validateAll(t, svc, op.ID)
}

func ledgerSum(repo *memoryRepo, productID, locationID int64) float64 {
	var sum float64
	for _, e := range repo.ledger {
		if e.ProductID != productID {
			continue
		}
		if e.QuantityChange < 0 && e.SourceLocationID != nil && *e.SourceLocationID == locationID {
			sum += e.QuantityChange
		}
		if e.QuantityChange > 0 && e.DestinationLocationID != nil && *e.DestinationLocationID == locationID {
			sum += e.QuantityChange
		}
	}
	return sum
}

func TestReceiptCreatesStockLevel(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeReceipt,
		SourceLocationID:      ptr(locSupplier),
		DestinationLocationID: ptr(locStockA),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, op.Status)
	require.Equal(t, "WH/IN/0001", op.OperationNumber)

	done := validateAll(t, svc, op.ID)
	require.Equal(t, StatusDone, done.Status)
	require.NotNil(t, done.ValidatedAt)
	require.InDelta(t, 10.0, done.Lines[0].ProcessedQuantity, 0.0001)

	require.Len(t, repo.ledger, 1)
	require.InDelta(t, 10.0, repo.ledger[0].QuantityChange, 0.0001)
	require.InDelta(t, 10.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
}

func TestDeliveryInsufficientStock(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 5)

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeDelivery,
		SourceLocationID:      ptr(locStockA),
		DestinationLocationID: ptr(locCustomer),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, op.ID, 0)
	require.NoError(t, err)

	_, err = svc.MarkReady(ctx, op.ID, 0)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.InDelta(t, 10.0, insufficient.Requested, 0.0001)
	require.InDelta(t, 5.0, insufficient.Available, 0.0001)

	require.InDelta(t, 5.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
}

func TestValidateRollsBackOnShortfall(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 10)

	// Two deliveries of 6 both pass the readiness check against 10.
	var ids []int64
	for i := 0; i < 2; i++ {
		op, err := svc.Create(ctx, CreateInput{
			OperationTypeID:       typeDelivery,
			SourceLocationID:      ptr(locStockA),
			DestinationLocationID: ptr(locCustomer),
			Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 6}},
		})
		require.NoError(t, err)
		_, err = svc.Confirm(ctx, op.ID, 0)
		require.NoError(t, err)
		_, err = svc.MarkReady(ctx, op.ID, 0)
		require.NoError(t, err)
		ids = append(ids, op.ID)
	}

	_, err := svc.Validate(ctx, ids[0], ValidateInput{})
	require.NoError(t, err)

	entriesBefore := len(repo.ledger)
	_, err = svc.Validate(ctx, ids[1], ValidateInput{})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, repo.ledger, entriesBefore)
	require.InDelta(t, 4.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)

	second, err := svc.Get(ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, StatusReady, second.Status)
}

func TestConcurrentDeliveries(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 10)

	var ids []int64
	for i := 0; i < 2; i++ {
		op, err := svc.Create(ctx, CreateInput{
			OperationTypeID:       typeDelivery,
			SourceLocationID:      ptr(locStockA),
			DestinationLocationID: ptr(locCustomer),
			Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 6}},
		})
		require.NoError(t, err)
		_, err = svc.Confirm(ctx, op.ID, 0)
		require.NoError(t, err)
		_, err = svc.MarkReady(ctx, op.ID, 0)
		require.NoError(t, err)
		ids = append(ids, op.ID)
	}

	results := make([]error, 2)
	var g errgroup.Group
	for i := range ids {
		i := i
		g.Go(func() error {
			_, err := svc.Validate(ctx, ids[i], ValidateInput{})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	successes := 0
	var insufficient *InsufficientStockError
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorAs(t, err, &insufficient)
		}
	}
	require.Equal(t, 1, successes)
	require.InDelta(t, 4.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
	require.GreaterOrEqual(t, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0)
}

func TestTransferPostsEntryPair(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 20)

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeTransfer,
		SourceLocationID:      ptr(locStockA),
		DestinationLocationID: ptr(locStockB),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, "WH/TRF/0002", op.OperationNumber)
	validateAll(t, svc, op.ID)

	require.InDelta(t, 15.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
	require.InDelta(t, 5.0, repo.levels[levelKey(1, locStockB)].OnHandQuantity, 0.0001)

	var forOp []stock.LedgerEntry
	for _, e := range repo.ledger {
		if e.OperationID != nil && *e.OperationID == op.ID {
			forOp = append(forOp, e)
		}
	}
	require.Len(t, forOp, 2)
}

func TestLedgerLevelConsistency(t *testing.T) {
	repo, svc := newFixture()
	seedStock(t, svc, 1, locStockA, 20)
	seedStock(t, svc, 2, locStockA, 7)

	op, err := svc.Create(context.Background(), CreateInput{
		OperationTypeID:       typeTransfer,
		SourceLocationID:      ptr(locStockA),
		DestinationLocationID: ptr(locStockB),
		Lines: []LineInput{
			{ProductID: 1, UomID: 1, RequestedQuantity: 8},
			{ProductID: 2, UomID: 1, RequestedQuantity: 3},
		},
	})
	require.NoError(t, err)
	validateAll(t, svc, op.ID)

	for key, level := range repo.levels {
		require.InDelta(t, ledgerSum(repo, level.ProductID, level.LocationID), level.OnHandQuantity, 0.0001, "pair %s", key)
	}
}

func TestPartialValidation(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 10)

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeDelivery,
		SourceLocationID:      ptr(locStockA),
		DestinationLocationID: ptr(locCustomer),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, op.ID, 0)
	require.NoError(t, err)
	_, err = svc.MarkReady(ctx, op.ID, 0)
	require.NoError(t, err)

	loaded, err := svc.Get(ctx, op.ID)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, op.ID, ValidateInput{Lines: []ProcessedInput{{LineID: loaded.Lines[0].ID, ProcessedQuantity: 11}}})
	require.Error(t, err)

	done, err := svc.Validate(ctx, op.ID, ValidateInput{Lines: []ProcessedInput{{LineID: loaded.Lines[0].ID, ProcessedQuantity: 4}}})
	require.NoError(t, err)
	require.InDelta(t, 4.0, done.Lines[0].ProcessedQuantity, 0.0001)
	require.InDelta(t, 6.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
}

func TestInvalidTransitionSkippingReady(t *testing.T) {
	_, svc := newFixture()
	ctx := context.Background()

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeReceipt,
		DestinationLocationID: ptr(locStockA),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 1}},
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, op.ID, 0)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, op.ID, ValidateInput{})
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, StatusWaiting, transition.From)
	require.Equal(t, StatusDone, transition.To)
}

func TestConfirmRequiresLines(t *testing.T) {
	_, svc := newFixture()
	ctx := context.Background()

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeReceipt,
		DestinationLocationID: ptr(locStockA),
	})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, op.ID, 0)
	require.Error(t, err)
}

func TestUpdateOnlyInDraft(t *testing.T) {
	_, svc := newFixture()
	ctx := context.Background()

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeReceipt,
		DestinationLocationID: ptr(locStockA),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 2}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, op.ID, UpdateInput{
		DestinationLocationID: ptr(locStockB),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 3}},
	})
	require.NoError(t, err)
	require.InDelta(t, 3.0, updated.Lines[0].RequestedQuantity, 0.0001)

	_, err = svc.Confirm(ctx, op.ID, 0)
	require.NoError(t, err)

	_, err = svc.Update(ctx, op.ID, UpdateInput{
		DestinationLocationID: ptr(locStockB),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 4}},
	})
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCancelDraftHasNoLedgerEffect(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeReceipt,
		DestinationLocationID: ptr(locStockA),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 5}},
	})
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, op.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Empty(t, repo.ledger)

	_, err = svc.Confirm(ctx, op.ID, 0)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCancelDoneReversesLedger(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 20)

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:       typeDelivery,
		SourceLocationID:      ptr(locStockA),
		DestinationLocationID: ptr(locCustomer),
		Lines:                 []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 6}},
	})
	require.NoError(t, err)
	validateAll(t, svc, op.ID)
	require.InDelta(t, 14.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)

	canceled, err := svc.Cancel(ctx, op.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.InDelta(t, 20.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)

	var reversal *stock.LedgerEntry
	for i := range repo.ledger {
		if repo.ledger[i].Reference == "REV/"+op.OperationNumber {
			reversal = &repo.ledger[i]
		}
	}
	require.NotNil(t, reversal)
	require.InDelta(t, 6.0, reversal.QuantityChange, 0.0001)
}

func TestAdjustmentNegative(t *testing.T) {
	repo, svc := newFixture()
	ctx := context.Background()
	seedStock(t, svc, 1, locStockA, 9)

	op, err := svc.Create(ctx, CreateInput{
		OperationTypeID:  typeAdjustment,
		SourceLocationID: ptr(locStockA),
		Lines:            []LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 2}},
	})
	require.NoError(t, err)
	validateAll(t, svc, op.ID)
	require.InDelta(t, 7.0, repo.levels[levelKey(1, locStockA)].OnHandQuantity, 0.0001)
}

func TestDuplicateProductLineRejected(t *testing.T) {
	_, svc := newFixture()

	_, err := svc.Create(context.Background(), CreateInput{
		OperationTypeID:       typeReceipt,
		DestinationLocationID: ptr(locStockA),
		Lines: []LineInput{
			{ProductID: 1, UomID: 1, RequestedQuantity: 2},
			{ProductID: 1, UomID: 1, RequestedQuantity: 3},
		},
	})
	require.Error(t, err)
}
