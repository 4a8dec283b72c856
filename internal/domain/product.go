package domain

// Product is the catalog service's view of a product. The catalog owns
// product truth; orders only snapshot prices at creation time.
type Product struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Images []string `json:"image"`
}

type PreferenceItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type PreferenceRequest struct {
	OrderID    string           `json:"orderId"`
	BusinessID string           `json:"businessId"`
	Items      []PreferenceItem `json:"items"`
}

// PaymentPreference is the gateway's opaque checkout session handle,
// returned to the caller unchanged.
type PaymentPreference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point,omitempty"`
}
