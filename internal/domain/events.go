package domain

// PaidOrderEvent is the one-way payment settlement notification. There
// is no caller waiting on a reply; failures are logged and swallowed.
type PaidOrderEvent struct {
	OrderID    string      `json:"order_id"`
	BusinessID string      `json:"business_id"`
	Status     OrderStatus `json:"status,omitempty"`
}
