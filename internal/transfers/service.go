package transfers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockmaster/stockmaster/internal/masterdata/optypes"
	"github.com/stockmaster/stockmaster/internal/operations"
	"github.com/stockmaster/stockmaster/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, t Transfer) (int64, error)
	Get(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, int, error)
	SetStatus(ctx context.Context, id int64, status TransferStatus) error
	DefaultStockLocation(ctx context.Context, warehouseID int64) (int64, error)
	TransitLocation(ctx context.Context) (int64, error)
	OperationTypeID(ctx context.Context, code string) (int64, error)
}

// OperationsPort is the slice of the operations service transfers drive.
type OperationsPort interface {
	Create(ctx context.Context, input operations.CreateInput) (operations.Operation, error)
	Get(ctx context.Context, id int64) (operations.Operation, error)
	Confirm(ctx context.Context, id int64, actorID int64) (operations.Operation, error)
	MarkReady(ctx context.Context, id int64, actorID int64) (operations.Operation, error)
	Validate(ctx context.Context, id int64, input operations.ValidateInput) (operations.Operation, error)
	Cancel(ctx context.Context, id int64, actorID int64) (operations.Operation, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates internal transfers by decomposing each into a delivery
// into transit and a receipt out of transit.
type Service struct {
	repo  RepositoryPort
	ops   OperationsPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ops OperationsPort, audit AuditPort) *Service {
	return &Service{repo: repo, ops: ops, audit: audit}
}

// CreateInput describes a new transfer.
type CreateInput struct {
	FromWarehouseID int64
	ToWarehouseID   int64
	ScheduledDate   time.Time
	Notes           string
	Lines           []operations.LineInput
	ActorID         int64
}

// Get loads one transfer.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: invalid transfer id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, int, error) {
	return s.repo.List(ctx, filter)
}

// Create builds and confirms both legs, then registers the transfer in Draft.
// Nothing posts to the ledger until Dispatch.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, error) {
	if input.FromWarehouseID <= 0 || input.ToWarehouseID <= 0 {
		return Transfer{}, fmt.Errorf("%w: source and destination warehouses are required", shared.ErrValidation)
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return Transfer{}, fmt.Errorf("%w: source and destination warehouses must differ", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Transfer{}, fmt.Errorf("%w: transfer requires at least one line", shared.ErrValidation)
	}

	srcLoc, err := s.repo.DefaultStockLocation(ctx, input.FromWarehouseID)
	if err != nil {
		return Transfer{}, locationErr(err, "source warehouse has no active stock location")
	}
	dstLoc, err := s.repo.DefaultStockLocation(ctx, input.ToWarehouseID)
	if err != nil {
		return Transfer{}, locationErr(err, "destination warehouse has no active stock location")
	}
	transitLoc, err := s.repo.TransitLocation(ctx)
	if err != nil {
		return Transfer{}, locationErr(err, "no active transit location configured")
	}
	deliveryType, err := s.repo.OperationTypeID(ctx, optypes.CodeDelivery)
	if err != nil {
		return Transfer{}, err
	}
	receiptType, err := s.repo.OperationTypeID(ctx, optypes.CodeReceipt)
	if err != nil {
		return Transfer{}, err
	}

	outbound, err := s.ops.Create(ctx, operations.CreateInput{
		OperationTypeID:       deliveryType,
		SourceLocationID:      &srcLoc,
		DestinationLocationID: &transitLoc,
		ScheduledDate:         input.ScheduledDate,
		Notes:                 input.Notes,
		Lines:                 input.Lines,
		ActorID:               input.ActorID,
	})
	if err != nil {
		return Transfer{}, err
	}
	if _, err := s.ops.Confirm(ctx, outbound.ID, input.ActorID); err != nil {
		return Transfer{}, err
	}

	inbound, err := s.ops.Create(ctx, operations.CreateInput{
		OperationTypeID:       receiptType,
		SourceLocationID:      &transitLoc,
		DestinationLocationID: &dstLoc,
		ScheduledDate:         input.ScheduledDate,
		Notes:                 input.Notes,
		Lines:                 input.Lines,
		ActorID:               input.ActorID,
	})
	if err != nil {
		return Transfer{}, err
	}
	if _, err := s.ops.Confirm(ctx, inbound.ID, input.ActorID); err != nil {
		return Transfer{}, err
	}

	id, err := s.repo.Create(ctx, Transfer{
		FromWarehouseID:     input.FromWarehouseID,
		ToWarehouseID:       input.ToWarehouseID,
		Status:              StatusDraft,
		OutboundOperationID: outbound.ID,
		InboundOperationID:  inbound.ID,
	})
	if err != nil {
		return Transfer{}, err
	}

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, input.ActorID, "transfers:create", created)
	return created, nil
}

// Dispatch validates the outbound leg, moving stock into transit.
func (s *Service) Dispatch(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if !CanTransition(t.Status, StatusInTransit) {
		return Transfer{}, &TransitionError{From: t.Status, To: StatusInTransit}
	}
	if _, err := s.ops.MarkReady(ctx, t.OutboundOperationID, actorID); err != nil {
		return Transfer{}, err
	}
	if _, err := s.ops.Validate(ctx, t.OutboundOperationID, operations.ValidateInput{ActorID: actorID}); err != nil {
		return Transfer{}, err
	}
	if err := s.repo.SetStatus(ctx, id, StatusInTransit); err != nil {
		return Transfer{}, err
	}
	t.Status = StatusInTransit
	s.recordAudit(ctx, actorID, "transfers:dispatch", t)
	return t, nil
}

// Receive validates the inbound leg, moving stock out of transit into the
// destination warehouse.
func (s *Service) Receive(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if !CanTransition(t.Status, StatusDone) {
		return Transfer{}, &TransitionError{From: t.Status, To: StatusDone}
	}
	if _, err := s.ops.MarkReady(ctx, t.InboundOperationID, actorID); err != nil {
		return Transfer{}, err
	}
	if _, err := s.ops.Validate(ctx, t.InboundOperationID, operations.ValidateInput{ActorID: actorID}); err != nil {
		return Transfer{}, err
	}
	if err := s.repo.SetStatus(ctx, id, StatusDone); err != nil {
		return Transfer{}, err
	}
	t.Status = StatusDone
	s.recordAudit(ctx, actorID, "transfers:receive", t)
	return t, nil
}

// Cancel terminates the transfer. Pending legs are canceled; validated legs
// are reversed through operation cancellation.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	if !CanTransition(t.Status, StatusCanceled) {
		return Transfer{}, &TransitionError{From: t.Status, To: StatusCanceled}
	}
	for _, opID := range []int64{t.InboundOperationID, t.OutboundOperationID} {
		if _, err := s.ops.Cancel(ctx, opID, actorID); err != nil {
			var transition *operations.TransitionError
			if errors.As(err, &transition) && transition.From == operations.StatusCanceled {
				continue
			}
			return Transfer{}, err
		}
	}
	if err := s.repo.SetStatus(ctx, id, StatusCanceled); err != nil {
		return Transfer{}, err
	}
	t.Status = StatusCanceled
	s.recordAudit(ctx, actorID, "transfers:cancel", t)
	return t, nil
}

func locationErr(err error, detail string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrValidation, detail)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, t Transfer) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "internal_transfer",
		EntityID: fmt.Sprintf("%d", t.ID),
		Meta: map[string]any{
			"from_warehouse_id": t.FromWarehouseID,
			"to_warehouse_id":   t.ToWarehouseID,
			"status":            string(t.Status),
		},
	})
}
