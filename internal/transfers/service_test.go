package transfers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/operations"
)

type memoryRepo struct {
	transfers map[int64]Transfer
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: make(map[int64]Transfer)}
}

func (r *memoryRepo) Create(ctx context.Context, t Transfer) (int64, error) {
	r.nextID++
	t.ID = r.nextID
	r.transfers[t.ID] = t
	return t.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Transfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return Transfer{}, fmt.Errorf("transfer %d: not found", id)
	}
	return t, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	var result []Transfer
	for _, t := range r.transfers {
		result = append(result, t)
	}
	return result, len(result), nil
}

func (r *memoryRepo) SetStatus(ctx context.Context, id int64, status TransferStatus) error {
	t := r.transfers[id]
	t.Status = status
	r.transfers[id] = t
	return nil
}

func (r *memoryRepo) DefaultStockLocation(ctx context.Context, warehouseID int64) (int64, error) {
	return warehouseID * 100, nil
}

func (r *memoryRepo) TransitLocation(ctx context.Context) (int64, error) {
	return 999, nil
}

func (r *memoryRepo) OperationTypeID(ctx context.Context, code string) (int64, error) {
	switch code {
	case "DELIVERY":
		return 2, nil
	case "RECEIPT":
		return 1, nil
	}
	return 0, fmt.Errorf("operation type %s: not found", code)
}

// fakeOps tracks operation statuses without posting anything.
type fakeOps struct {
	ops    map[int64]operations.Operation
	nextID int64
	calls  []string
}

func newFakeOps() *fakeOps {
	return &fakeOps{ops: make(map[int64]operations.Operation)}
}

func (f *fakeOps) Create(ctx context.Context, input operations.CreateInput) (operations.Operation, error) {
	f.nextID++
	op := operations.Operation{
		ID:                    f.nextID,
		OperationTypeID:       input.OperationTypeID,
		Status:                operations.StatusDraft,
		SourceLocationID:      input.SourceLocationID,
		DestinationLocationID: input.DestinationLocationID,
	}
	f.ops[op.ID] = op
	f.calls = append(f.calls, fmt.Sprintf("create:%d", op.ID))
	return op, nil
}

func (f *fakeOps) Get(ctx context.Context, id int64) (operations.Operation, error) {
	return f.ops[id], nil
}

func (f *fakeOps) transition(id int64, to operations.Status) (operations.Operation, error) {
	op := f.ops[id]
	if !operations.CanTransition(op.Status, to) {
		return operations.Operation{}, &operations.TransitionError{From: op.Status, To: to}
	}
	op.Status = to
	f.ops[id] = op
	return op, nil
}

func (f *fakeOps) Confirm(ctx context.Context, id int64, actorID int64) (operations.Operation, error) {
	f.calls = append(f.calls, fmt.Sprintf("confirm:%d", id))
	return f.transition(id, operations.StatusWaiting)
}

func (f *fakeOps) MarkReady(ctx context.Context, id int64, actorID int64) (operations.Operation, error) {
	f.calls = append(f.calls, fmt.Sprintf("ready:%d", id))
	return f.transition(id, operations.StatusReady)
}

func (f *fakeOps) Validate(ctx context.Context, id int64, input operations.ValidateInput) (operations.Operation, error) {
	f.calls = append(f.calls, fmt.Sprintf("validate:%d", id))
	return f.transition(id, operations.StatusDone)
}

func (f *fakeOps) Cancel(ctx context.Context, id int64, actorID int64) (operations.Operation, error) {
	f.calls = append(f.calls, fmt.Sprintf("cancel:%d", id))
	return f.transition(id, operations.StatusCanceled)
}

func newFixture() (*memoryRepo, *fakeOps, *Service) {
	repo := newMemoryRepo()
	ops := newFakeOps()
	return repo, ops, NewService(repo, ops, nil)
}

func createTransfer(t *testing.T, svc *Service) Transfer {
	t.Helper()
	tr, err := svc.Create(context.Background(), CreateInput{
		FromWarehouseID: 1,
		ToWarehouseID:   2,
		Lines:           []operations.LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 5}},
	})
	require.NoError(t, err)
	return tr
}

func TestCreateDecomposesIntoTwoLegs(t *testing.T) {
	_, ops, svc := newFixture()

	tr := createTransfer(t, svc)
	require.Equal(t, StatusDraft, tr.Status)
	require.NotZero(t, tr.OutboundOperationID)
	require.NotZero(t, tr.InboundOperationID)
	require.NotEqual(t, tr.OutboundOperationID, tr.InboundOperationID)

	outbound := ops.ops[tr.OutboundOperationID]
	inbound := ops.ops[tr.InboundOperationID]
	require.Equal(t, operations.StatusWaiting, outbound.Status)
	require.Equal(t, operations.StatusWaiting, inbound.Status)
	// Outbound ends in transit, inbound starts there.
	require.Equal(t, *outbound.DestinationLocationID, *inbound.SourceLocationID)
}

func TestDispatchValidatesOutboundLeg(t *testing.T) {
	_, ops, svc := newFixture()
	ctx := context.Background()

	tr := createTransfer(t, svc)
	dispatched, err := svc.Dispatch(ctx, tr.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, dispatched.Status)
	require.Equal(t, operations.StatusDone, ops.ops[tr.OutboundOperationID].Status)
	require.Equal(t, operations.StatusWaiting, ops.ops[tr.InboundOperationID].Status)
}

func TestReceiveCompletesTransfer(t *testing.T) {
	_, ops, svc := newFixture()
	ctx := context.Background()

	tr := createTransfer(t, svc)
	_, err := svc.Dispatch(ctx, tr.ID, 0)
	require.NoError(t, err)

	received, err := svc.Receive(ctx, tr.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusDone, received.Status)
	require.Equal(t, operations.StatusDone, ops.ops[tr.InboundOperationID].Status)
}

func TestReceiveBeforeDispatchRejected(t *testing.T) {
	_, _, svc := newFixture()

	tr := createTransfer(t, svc)
	_, err := svc.Receive(context.Background(), tr.ID, 0)
	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, StatusDraft, transition.From)
	require.Equal(t, StatusDone, transition.To)
}

func TestCancelDraftCancelsBothLegs(t *testing.T) {
	_, ops, svc := newFixture()

	tr := createTransfer(t, svc)
	canceled, err := svc.Cancel(context.Background(), tr.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	require.Equal(t, operations.StatusCanceled, ops.ops[tr.OutboundOperationID].Status)
	require.Equal(t, operations.StatusCanceled, ops.ops[tr.InboundOperationID].Status)
}

func TestCancelInTransitReversesOutbound(t *testing.T) {
	_, ops, svc := newFixture()
	ctx := context.Background()

	tr := createTransfer(t, svc)
	_, err := svc.Dispatch(ctx, tr.ID, 0)
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, tr.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
	// The Done outbound leg is canceled through the operations service,
	// which posts the compensating entries.
	require.Equal(t, operations.StatusCanceled, ops.ops[tr.OutboundOperationID].Status)
	require.Equal(t, operations.StatusCanceled, ops.ops[tr.InboundOperationID].Status)
}

func TestCreateRejectsSameWarehouse(t *testing.T) {
	_, _, svc := newFixture()

	_, err := svc.Create(context.Background(), CreateInput{
		FromWarehouseID: 1,
		ToWarehouseID:   1,
		Lines:           []operations.LineInput{{ProductID: 1, UomID: 1, RequestedQuantity: 5}},
	})
	require.Error(t, err)
}
