package transfers

import (
	"fmt"
	"time"
)

// TransferStatus enumerates the internal transfer lifecycle.
type TransferStatus string

const (
	StatusDraft     TransferStatus = "DRAFT"
	StatusInTransit TransferStatus = "IN_TRANSIT"
	StatusDone      TransferStatus = "DONE"
	StatusCanceled  TransferStatus = "CANCELED"
)

var transitions = map[TransferStatus][]TransferStatus{
	StatusDraft:     {StatusInTransit, StatusCanceled},
	StatusInTransit: {StatusDone, StatusCanceled},
	StatusDone:      {StatusCanceled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to TransferStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a transfer lifecycle violation.
type TransitionError struct {
	From TransferStatus
	To   TransferStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transfers: invalid transition %s -> %s", e.From, e.To)
}

// Transfer is a warehouse-to-warehouse movement header. It decomposes into a
// delivery into transit and a receipt out of transit, coupled under one
// status so callers see a single lifecycle.
type Transfer struct {
	ID                  int64          `json:"id"`
	FromWarehouseID     int64          `json:"from_warehouse_id"`
	ToWarehouseID       int64          `json:"to_warehouse_id"`
	Status              TransferStatus `json:"status"`
	OutboundOperationID int64          `json:"outbound_operation_id"`
	InboundOperationID  int64          `json:"inbound_operation_id"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	Status      TransferStatus
	WarehouseID int64
	Page        int
	Limit       int
}
