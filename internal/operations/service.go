package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockmaster/stockmaster/internal/masterdata/optypes"
	"github.com/stockmaster/stockmaster/internal/shared"
	"github.com/stockmaster/stockmaster/internal/stock"
)

// Quantities are scanned from NUMERIC(10,3); comparisons tolerate float noise.
const qtyEpsilon = 1e-9

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Operation, error)
	List(ctx context.Context, filter ListFilter) ([]Operation, int, error)
	GetLocation(ctx context.Context, id int64) (LocationInfo, error)
	GetOperationTypeCode(ctx context.Context, typeID int64) (string, error)
	AvailableQuantity(ctx context.Context, productID, locationID int64) (float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates cached stock level reads after a posting.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// MetricsPort records validation outcomes.
type MetricsPort interface {
	ObserveValidation(opType, outcome string)
}

// Service coordinates the inventory operation lifecycle.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	locker      *shared.Locker
	cache       CacheBumper
	metrics     MetricsPort
}

// NewService builds Service. Audit, idempotency, locker, cache and metrics
// are optional.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, locker *shared.Locker, cache CacheBumper, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, locker: locker, cache: cache, metrics: metrics}
}

// LineInput describes a requested product movement line.
type LineInput struct {
	ProductID         int64
	UomID             int64
	RequestedQuantity float64
	Notes             string
}

// CreateInput describes a new draft operation.
type CreateInput struct {
	OperationTypeID       int64
	SourceLocationID      *int64
	DestinationLocationID *int64
	ScheduledDate         time.Time
	ResponsibleUserID     *int64
	Notes                 string
	Lines                 []LineInput
	ActorID               int64
}

// UpdateInput describes changes to a draft operation.
type UpdateInput struct {
	SourceLocationID      *int64
	DestinationLocationID *int64
	ScheduledDate         time.Time
	ResponsibleUserID     *int64
	Notes                 string
	Lines                 []LineInput
	ActorID               int64
}

// ProcessedInput overrides the processed quantity of a line during validation.
type ProcessedInput struct {
	LineID            int64
	ProcessedQuantity float64
}

// ValidateInput describes a validation request. Lines omitted from Lines
// default to their requested quantity.
type ValidateInput struct {
	Lines   []ProcessedInput
	ActorID int64
}

// Get loads one operation with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Operation, error) {
	if id <= 0 {
		return Operation{}, fmt.Errorf("%w: invalid operation id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns operations matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Operation, int, error) {
	return s.repo.List(ctx, filter)
}

// Create registers a draft operation with its lines and assigns a
// collision-free operation number from the database sequence.
func (s *Service) Create(ctx context.Context, input CreateInput) (Operation, error) {
	typeCode, err := s.repo.GetOperationTypeCode(ctx, input.OperationTypeID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Operation{}, fmt.Errorf("%w: unknown operation type", shared.ErrValidation)
		}
		return Operation{}, err
	}
	if err := s.validateEndpoints(ctx, typeCode, input.SourceLocationID, input.DestinationLocationID); err != nil {
		return Operation{}, err
	}
	if err := validateLines(input.Lines); err != nil {
		return Operation{}, err
	}

	scheduled := input.ScheduledDate
	if scheduled.IsZero() {
		scheduled = time.Now().UTC()
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextOperationNumber(ctx, typeCode)
		if err != nil {
			return err
		}
		op := Operation{
			OperationNumber:       number,
			OperationTypeID:       input.OperationTypeID,
			TypeCode:              typeCode,
			Status:                StatusDraft,
			SourceLocationID:      input.SourceLocationID,
			DestinationLocationID: input.DestinationLocationID,
			ScheduledDate:         scheduled,
			ResponsibleUserID:     input.ResponsibleUserID,
			Notes:                 input.Notes,
			CreatedAt:             time.Now().UTC(),
		}
		id, err = tx.InsertOperation(ctx, op)
		if err != nil {
			return err
		}
		return tx.InsertLines(ctx, id, toLines(id, input.Lines))
	})
	if err != nil {
		return Operation{}, err
	}

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	s.recordAudit(ctx, input.ActorID, "operations:create", created, nil)
	return created, nil
}

// Update rewrites header fields and lines of a draft operation. Any other
// status rejects the change.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Operation, error) {
	if id <= 0 {
		return Operation{}, fmt.Errorf("%w: invalid operation id", shared.ErrValidation)
	}
	if err := validateLines(input.Lines); err != nil {
		return Operation{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if op.Status != StatusDraft {
			return &TransitionError{From: op.Status, To: StatusDraft}
		}
		if err := s.validateEndpoints(ctx, op.TypeCode, input.SourceLocationID, input.DestinationLocationID); err != nil {
			return err
		}
		op.SourceLocationID = input.SourceLocationID
		op.DestinationLocationID = input.DestinationLocationID
		if !input.ScheduledDate.IsZero() {
			op.ScheduledDate = input.ScheduledDate
		}
		op.ResponsibleUserID = input.ResponsibleUserID
		op.Notes = input.Notes
		if err := tx.UpdateDraft(ctx, op); err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, id, toLines(id, input.Lines))
	})
	if err != nil {
		return Operation{}, err
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	s.recordAudit(ctx, input.ActorID, "operations:update", updated, nil)
	return updated, nil
}

// Confirm moves Draft to Waiting. Requires at least one line with a positive
// requested quantity.
func (s *Service) Confirm(ctx context.Context, id int64, actorID int64) (Operation, error) {
	return s.transition(ctx, id, actorID, StatusWaiting, "operations:confirm", func(ctx context.Context, _ TxRepository, op Operation) error {
		hasLine := false
		for _, l := range op.Lines {
			if l.RequestedQuantity > qtyEpsilon {
				hasLine = true
				break
			}
		}
		if !hasLine {
			return fmt.Errorf("%w: operation has no line with requested quantity", shared.ErrValidation)
		}
		return nil
	})
}

// MarkReady moves Waiting to Ready once enough on-hand quantity exists at the
// source location for every line. Operations without a stock-tracked source
// (receipts, positive adjustments) pass unconditionally. This check is a
// courtesy read; Validate re-checks under the row lock.
func (s *Service) MarkReady(ctx context.Context, id int64, actorID int64) (Operation, error) {
	return s.transition(ctx, id, actorID, StatusReady, "operations:ready", func(ctx context.Context, _ TxRepository, op Operation) error {
		if op.SourceLocationID == nil {
			return nil
		}
		src, err := s.repo.GetLocation(ctx, *op.SourceLocationID)
		if err != nil {
			return err
		}
		if !src.TracksStock() {
			return nil
		}
		for _, l := range op.Lines {
			available, err := s.repo.AvailableQuantity(ctx, l.ProductID, src.ID)
			if err != nil {
				return err
			}
			if available+qtyEpsilon < l.RequestedQuantity {
				return &InsufficientStockError{
					ProductID:  l.ProductID,
					LocationID: src.ID,
					Requested:  l.RequestedQuantity,
					Available:  available,
				}
			}
		}
		return nil
	})
}

// Validate moves Ready to Done: per line it stamps the processed quantity,
// appends signed ledger entries and upserts stock levels under row locks.
// All lines post or none do.
func (s *Service) Validate(ctx context.Context, id int64, input ValidateInput) (Operation, error) {
	if id <= 0 {
		return Operation{}, fmt.Errorf("%w: invalid operation id", shared.ErrValidation)
	}

	lockKey := shared.OperationLockKey(id)
	token, err := s.locker.Acquire(ctx, lockKey)
	if err != nil {
		return Operation{}, err
	}
	defer func() { _ = s.locker.Release(ctx, lockKey, token) }()

	idemKey := fmt.Sprintf("operation:%d:validate", id)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "operations"); err != nil {
			return Operation{}, err
		}
		insertedKey = true
	}

	overrides := make(map[int64]float64, len(input.Lines))
	for _, p := range input.Lines {
		overrides[p.LineID] = p.ProcessedQuantity
	}

	var typeCode string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		typeCode = op.TypeCode
		if op.Status != StatusReady {
			return &TransitionError{From: op.Status, To: StatusDone}
		}
		if len(op.Lines) == 0 {
			return fmt.Errorf("%w: operation has no lines", shared.ErrValidation)
		}

		src, dst, err := resolveEndpoints(ctx, tx, op)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		for _, line := range op.Lines {
			processed := line.RequestedQuantity
			if override, ok := overrides[line.ID]; ok {
				processed = override
			}
			if processed <= qtyEpsilon || processed > line.RequestedQuantity+qtyEpsilon {
				return fmt.Errorf("%w: processed quantity for line %d must be in (0, requested]", shared.ErrValidation, line.ID)
			}
			if err := postLine(ctx, tx, op, line, processed, src, dst, now); err != nil {
				return err
			}
			if err := tx.SetLineProcessed(ctx, line.ID, processed); err != nil {
				return err
			}
		}

		if err := tx.SetStatus(ctx, id, StatusDone); err != nil {
			return err
		}
		return tx.StampValidated(ctx, id, now)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		s.observeValidation(typeCode, err)
		return Operation{}, err
	}
	s.observeValidation(typeCode, nil)
	s.bumpCache(ctx)

	done, err := s.repo.Get(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	s.recordAudit(ctx, input.ActorID, "operations:validate", done, nil)
	return done, nil
}

// Cancel terminates an operation. Pending operations flip status only; a
// Done operation posts compensating ledger entries restoring prior stock
// levels before flipping. History is never deleted.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Operation, error) {
	if id <= 0 {
		return Operation{}, fmt.Errorf("%w: invalid operation id", shared.ErrValidation)
	}

	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(op.Status, StatusCanceled) {
			return &TransitionError{From: op.Status, To: StatusCanceled}
		}
		if op.Status == StatusDone {
			if err := reverseOperation(ctx, tx, op); err != nil {
				return err
			}
			reversed = true
		}
		return tx.SetStatus(ctx, id, StatusCanceled)
	})
	if err != nil {
		return Operation{}, err
	}
	if reversed {
		s.bumpCache(ctx)
	}

	canceled, err := s.repo.Get(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	s.recordAudit(ctx, actorID, "operations:cancel", canceled, map[string]any{"reversed": reversed})
	return canceled, nil
}

// transition re-reads the operation under lock, runs the guard, and flips the
// status when the transition is legal.
func (s *Service) transition(ctx context.Context, id, actorID int64, to Status, action string, guard func(context.Context, TxRepository, Operation) error) (Operation, error) {
	if id <= 0 {
		return Operation{}, fmt.Errorf("%w: invalid operation id", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		op, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(op.Status, to) {
			return &TransitionError{From: op.Status, To: to}
		}
		if guard != nil {
			if err := guard(ctx, tx, op); err != nil {
				return err
			}
		}
		return tx.SetStatus(ctx, id, to)
	})
	if err != nil {
		return Operation{}, err
	}
	op, err := s.repo.Get(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	s.recordAudit(ctx, actorID, action, op, nil)
	return op, nil
}

// postLine appends the ledger entries for one line and applies the deltas to
// the affected stock levels. A leg posts only when its location tracks stock;
// virtual counterparties appear on the operation header alone.
func postLine(ctx context.Context, tx TxRepository, op Operation, line Line, qty float64, src, dst *LocationInfo, at time.Time) error {
	if src != nil && src.TracksStock() {
		level, err := tx.GetStockLevelForUpdate(ctx, line.ProductID, src.ID)
		if err != nil && !errors.Is(err, stock.ErrLevelNotFound) {
			return err
		}
		if level.OnHandQuantity+qtyEpsilon < qty {
			return &InsufficientStockError{
				ProductID:  line.ProductID,
				LocationID: src.ID,
				Requested:  qty,
				Available:  level.OnHandQuantity,
			}
		}
		srcID := src.ID
		entry := stock.LedgerEntry{
			OperationID:      &op.ID,
			ProductID:        line.ProductID,
			SourceLocationID: &srcID,
			QuantityChange:   -qty,
			UomID:            line.UomID,
			TransactionDate:  at,
			Reference:        op.OperationNumber,
		}
		if _, err := tx.InsertLedgerEntry(ctx, entry); err != nil {
			return err
		}
		level.OnHandQuantity -= qty
		if err := tx.UpsertStockLevel(ctx, level); err != nil {
			return err
		}
	}
	if dst != nil && dst.TracksStock() {
		level, err := tx.GetStockLevelForUpdate(ctx, line.ProductID, dst.ID)
		if err != nil && !errors.Is(err, stock.ErrLevelNotFound) {
			return err
		}
		dstID := dst.ID
		entry := stock.LedgerEntry{
			OperationID:           &op.ID,
			ProductID:             line.ProductID,
			DestinationLocationID: &dstID,
			QuantityChange:        qty,
			UomID:                 line.UomID,
			TransactionDate:       at,
			Reference:             op.OperationNumber,
		}
		if _, err := tx.InsertLedgerEntry(ctx, entry); err != nil {
			return err
		}
		level.OnHandQuantity += qty
		if err := tx.UpsertStockLevel(ctx, level); err != nil {
			return err
		}
	}
	return nil
}

// reverseOperation negates every ledger entry of a Done operation and
// restores the affected stock levels. Reversal entries keep the sign
// convention: a negated debit arrives back at its source.
func reverseOperation(ctx context.Context, tx TxRepository, op Operation) error {
	entries, err := tx.LedgerEntriesForOperation(ctx, op.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	reference := "REV/" + op.OperationNumber

	for _, orig := range entries {
		var locationID int64
		rev := stock.LedgerEntry{
			OperationID:     &op.ID,
			ProductID:       orig.ProductID,
			QuantityChange:  -orig.QuantityChange,
			UomID:           orig.UomID,
			TransactionDate: now,
			Reference:       reference,
		}
		if orig.QuantityChange < 0 && orig.SourceLocationID != nil {
			locationID = *orig.SourceLocationID
			rev.DestinationLocationID = &locationID
		} else if orig.DestinationLocationID != nil {
			locationID = *orig.DestinationLocationID
			rev.SourceLocationID = &locationID
		} else {
			continue
		}
		if _, err := tx.InsertLedgerEntry(ctx, rev); err != nil {
			return err
		}
		level, err := tx.GetStockLevelForUpdate(ctx, orig.ProductID, locationID)
		if err != nil && !errors.Is(err, stock.ErrLevelNotFound) {
			return err
		}
		level.OnHandQuantity += rev.QuantityChange
		if err := tx.UpsertStockLevel(ctx, level); err != nil {
			return err
		}
	}
	return nil
}

func resolveEndpoints(ctx context.Context, tx TxRepository, op Operation) (src, dst *LocationInfo, err error) {
	if op.SourceLocationID != nil {
		info, err := tx.GetLocation(ctx, *op.SourceLocationID)
		if err != nil {
			return nil, nil, err
		}
		src = &info
	}
	if op.DestinationLocationID != nil {
		info, err := tx.GetLocation(ctx, *op.DestinationLocationID)
		if err != nil {
			return nil, nil, err
		}
		dst = &info
	}
	return src, dst, nil
}

func (s *Service) validateEndpoints(ctx context.Context, typeCode string, src, dst *int64) error {
	switch typeCode {
	case optypes.CodeReceipt:
		if dst == nil {
			return fmt.Errorf("%w: receipt requires a destination location", shared.ErrValidation)
		}
	case optypes.CodeDelivery:
		if src == nil {
			return fmt.Errorf("%w: delivery requires a source location", shared.ErrValidation)
		}
	case optypes.CodeTransfer:
		if src == nil || dst == nil {
			return fmt.Errorf("%w: transfer requires source and destination locations", shared.ErrValidation)
		}
		if *src == *dst {
			return fmt.Errorf("%w: transfer source and destination must differ", shared.ErrValidation)
		}
	case optypes.CodeAdjustment:
		if src == nil && dst == nil {
			return fmt.Errorf("%w: adjustment requires a source or destination location", shared.ErrValidation)
		}
	}
	for _, id := range []*int64{src, dst} {
		if id == nil {
			continue
		}
		if _, err := s.repo.GetLocation(ctx, *id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: unknown location %d", shared.ErrValidation, *id)
			}
			return err
		}
	}
	return nil
}

func validateLines(lines []LineInput) error {
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			return fmt.Errorf("%w: line product is required", shared.ErrValidation)
		}
		if l.UomID <= 0 {
			return fmt.Errorf("%w: line unit of measure is required", shared.ErrValidation)
		}
		if l.RequestedQuantity <= qtyEpsilon {
			return fmt.Errorf("%w: requested quantity must be positive", shared.ErrValidation)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("%w: duplicate product %d in operation lines", shared.ErrValidation, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

func toLines(operationID int64, inputs []LineInput) []Line {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, Line{
			OperationID:       operationID,
			ProductID:         in.ProductID,
			UomID:             in.UomID,
			RequestedQuantity: in.RequestedQuantity,
			Notes:             in.Notes,
		})
	}
	return lines
}

func (s *Service) observeValidation(typeCode string, err error) {
	if s.metrics == nil || typeCode == "" {
		return
	}
	outcome := "success"
	var insufficient *InsufficientStockError
	var transition *TransitionError
	switch {
	case err == nil:
	case errors.As(err, &insufficient):
		outcome = "insufficient_stock"
	case errors.As(err, &transition):
		outcome = "invalid_transition"
	default:
		outcome = "error"
	}
	s.metrics.ObserveValidation(typeCode, outcome)
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Bump(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, op Operation, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["operation_number"] = op.OperationNumber
	meta["status"] = string(op.Status)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_operation",
		EntityID: fmt.Sprintf("%d", op.ID),
		Meta:     meta,
	})
}
