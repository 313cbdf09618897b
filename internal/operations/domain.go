package operations

import (
	"fmt"
	"time"

	"github.com/stockmaster/stockmaster/internal/masterdata/locations"
	"github.com/stockmaster/stockmaster/internal/masterdata/optypes"
)

// Status enumerates the inventory operation lifecycle states.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusWaiting  Status = "WAITING"
	StatusReady    Status = "READY"
	StatusDone     Status = "DONE"
	StatusCanceled Status = "CANCELED"
)

// transitions is the authoritative state machine. Done to Canceled is a
// reversal: compensating ledger entries are posted, history stays.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusWaiting, StatusCanceled},
	StatusWaiting: {StatusReady, StatusCanceled},
	StatusReady:   {StatusDone, StatusCanceled},
	StatusDone:    {StatusCanceled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a lifecycle state violation.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("operations: invalid transition %s -> %s", e.From, e.To)
}

// InsufficientStockError reports an availability shortfall at a location.
type InsufficientStockError struct {
	ProductID  int64
	LocationID int64
	Requested  float64
	Available  float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("operations: insufficient stock for product %d at location %d: requested %.3f, available %.3f",
		e.ProductID, e.LocationID, e.Requested, e.Available)
}

// Operation is the header of a planned or executed stock movement.
type Operation struct {
	ID                    int64      `json:"id"`
	OperationNumber       string     `json:"operation_number"`
	OperationTypeID       int64      `json:"operation_type_id"`
	TypeCode              string     `json:"type_code"`
	Status                Status     `json:"status"`
	SourceLocationID      *int64     `json:"source_location_id,omitempty"`
	DestinationLocationID *int64     `json:"destination_location_id,omitempty"`
	ScheduledDate         time.Time  `json:"scheduled_date"`
	ValidatedAt           *time.Time `json:"validated_at,omitempty"`
	ResponsibleUserID     *int64     `json:"responsible_user_id,omitempty"`
	Notes                 string     `json:"notes"`
	CreatedAt             time.Time  `json:"created_at"`
	Lines                 []Line     `json:"lines"`
}

// Line is a per-product detail row of an operation.
type Line struct {
	ID                int64   `json:"id"`
	OperationID       int64   `json:"operation_id"`
	ProductID         int64   `json:"product_id"`
	UomID             int64   `json:"uom_id"`
	RequestedQuantity float64 `json:"requested_quantity"`
	ProcessedQuantity float64 `json:"processed_quantity"`
	Notes             string  `json:"notes"`
}

// LocationInfo carries the location attributes posting needs.
type LocationInfo struct {
	ID           int64
	WarehouseID  int64
	LocationType string
}

// TracksStock reports whether the location keeps stock level rows. Virtual
// counterparties (transit, customer, supplier) appear on ledger entries but
// never accumulate stock levels.
func (l LocationInfo) TracksStock() bool {
	return !locations.IsVirtualType(l.LocationType)
}

// ListFilter narrows operation listings.
type ListFilter struct {
	TypeCode string
	Status   Status
	Page     int
	Limit    int
}

// numberPrefix maps a type code to the operation number infix.
func numberPrefix(typeCode string) string {
	switch typeCode {
	case optypes.CodeReceipt:
		return "IN"
	case optypes.CodeDelivery:
		return "OUT"
	case optypes.CodeTransfer:
		return "TRF"
	case optypes.CodeAdjustment:
		return "ADJ"
	default:
		return "OP"
	}
}

// FormatOperationNumber renders a sequence value as WH/<PFX>/0001.
func FormatOperationNumber(typeCode string, seq int64) string {
	return fmt.Sprintf("WH/%s/%04d", numberPrefix(typeCode), seq)
}
