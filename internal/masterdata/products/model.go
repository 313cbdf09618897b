package products

import "time"

// Product represents a stockable item.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SKUCode    string    `json:"sku_code"`
	CategoryID *int64    `json:"category_id,omitempty"`
	UomID      int64     `json:"uom_id"`
	SalePrice  float64   `json:"sale_price"`
	Cost       float64   `json:"cost"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
