package stock

import (
	"errors"
	"time"
)

// LedgerEntry is an immutable signed quantity record attributing a stock
// change to an operation. Negative quantity_change means stock leaving the
// source location, positive means stock arriving at the destination.
type LedgerEntry struct {
	ID                    int64     `json:"id"`
	OperationID           *int64    `json:"operation_id,omitempty"`
	ProductID             int64     `json:"product_id"`
	SourceLocationID      *int64    `json:"source_location_id,omitempty"`
	DestinationLocationID *int64    `json:"destination_location_id,omitempty"`
	QuantityChange        float64   `json:"quantity_change"`
	UomID                 int64     `json:"uom_id"`
	TransactionDate       time.Time `json:"transaction_date"`
	Reference             string    `json:"reference"`
}

// StockLevel caches the current on-hand quantity per (product, location).
// It must always equal the running sum of ledger entries for that pair.
type StockLevel struct {
	ProductID      int64     `json:"product_id"`
	LocationID     int64     `json:"location_id"`
	OnHandQuantity float64   `json:"on_hand_quantity"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	ProductID   int64
	LocationID  int64
	OperationID int64
	From        time.Time
	To          time.Time
	Page        int
	Limit       int
}

// LevelFilter narrows stock level listings.
type LevelFilter struct {
	ProductID   int64
	LocationID  int64
	WarehouseID int64
	Page        int
	Limit       int
}

// ErrLevelNotFound indicates a missing stock level row.
var ErrLevelNotFound = errors.New("stock level not found")
