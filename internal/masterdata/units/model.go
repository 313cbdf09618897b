package units

// Unit represents a unit of measure (e.g. Piece/pc, Kilogram/kg).
type Unit struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
