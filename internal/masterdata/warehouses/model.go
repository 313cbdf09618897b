package warehouses

// Warehouse represents a physical warehouse site.
type Warehouse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Address  string `json:"address"`
	IsActive bool   `json:"is_active"`
}
