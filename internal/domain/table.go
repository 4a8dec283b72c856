package domain

// Table is read-only from the order engine's perspective; the tables
// component owns it.
type Table struct {
	ID         string `json:"id"`
	Number     int    `json:"number"`
	BusinessID string `json:"business_id"`
}
