package optypes

// Well-known operation type codes.
const (
	CodeReceipt    = "RECEIPT"
	CodeDelivery   = "DELIVERY"
	CodeTransfer   = "TRANSFER"
	CodeAdjustment = "ADJUSTMENT"
)

// KnownCode reports whether code is one of the built-in operation types.
func KnownCode(code string) bool {
	switch code {
	case CodeReceipt, CodeDelivery, CodeTransfer, CodeAdjustment:
		return true
	default:
		return false
	}
}

// OperationType classifies inventory operations.
type OperationType struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
