package locations

// Location types. Physical types hold stock; virtual types (transit, customer,
// supplier) are counterparties on ledger entries and never track stock levels.
const (
	TypeStock    = "STOCK"
	TypeInput    = "INPUT"
	TypeOutput   = "OUTPUT"
	TypeTransit  = "TRANSIT"
	TypeCustomer = "CUSTOMER"
	TypeSupplier = "SUPPLIER"
)

// IsVirtualType reports whether the location type is a virtual counterparty.
func IsVirtualType(locationType string) bool {
	switch locationType {
	case TypeTransit, TypeCustomer, TypeSupplier:
		return true
	default:
		return false
	}
}

// ValidType reports whether the location type is one of the known types.
func ValidType(locationType string) bool {
	switch locationType {
	case TypeStock, TypeInput, TypeOutput, TypeTransit, TypeCustomer, TypeSupplier:
		return true
	default:
		return false
	}
}

// Location represents a named storage point within a warehouse.
type Location struct {
	ID           int64  `json:"id"`
	WarehouseID  int64  `json:"warehouse_id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	LocationType string `json:"location_type"`
	IsActive     bool   `json:"is_active"`
}
