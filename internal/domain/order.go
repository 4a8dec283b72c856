package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// Service charge lines are stored as a synthetic order item under a
// reserved product id that never collides with catalog ids.
const (
	ServiceChargeProductID int64   = 99999
	ServiceChargeLabel     string  = "charge-service"
	ServiceChargeRate      float64 = 0.10
)

type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID             string      `json:"id"`
	BusinessID     string      `json:"business_id"`
	TableID        string      `json:"table_id"`
	Status         OrderStatus `json:"status"`
	TotalAmount    float64     `json:"total_amount"`
	TotalItems     int         `json:"total_items"`
	Paid           bool        `json:"paid"`
	PaidAt         *time.Time  `json:"paid_at,omitempty"`
	PaidMethodType string      `json:"paid_method_type,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NamedOrderItem is an order item decorated with the product name
// fetched from the catalog (or the service charge label).
type NamedOrderItem struct {
	OrderItem
	Name string `json:"name"`
}

// OrderWithProducts is the creation/read view: the order header plus
// its name-decorated line items.
type OrderWithProducts struct {
	Order
	Items []NamedOrderItem `json:"items"`
}

// OrderDetails is the richer read used by delivery marking and the
// kitchen view: header, raw line items, and the owning table's number.
type OrderDetails struct {
	Order
	Items       []OrderItem `json:"items"`
	TableNumber int         `json:"table"`
}

type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

type OrdersPage struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

type KitchenOrderItem struct {
	ID            string   `json:"id"`
	OrderID       string   `json:"order_id"`
	ProductID     int64    `json:"product_id"`
	ProductName   string   `json:"product_name"`
	ProductImages []string `json:"product_image"`
	Quantity      int      `json:"quantity"`
	Price         float64  `json:"price"`
}

type KitchenOrder struct {
	ID          string             `json:"id"`
	Table       int                `json:"table"`
	TotalAmount float64            `json:"total_amount"`
	TotalItems  int                `json:"total_items"`
	Status      OrderStatus        `json:"status"`
	Paid        bool               `json:"paid"`
	PaidAt      *time.Time         `json:"paid_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Items       []KitchenOrderItem `json:"items"`
}

type KitchenOrdersPage struct {
	Data []KitchenOrder `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// ProductSales is one row of the storage-layer sales aggregation.
type ProductSales struct {
	ProductID int64   `json:"product_id"`
	TotalSold float64 `json:"total_sold"`
}

type TopSellingProduct struct {
	Product
	TotalSold float64 `json:"totalSold"`
}

type TotalMeta struct {
	Total int `json:"total"`
}

type TopSellingPage struct {
	Data []TopSellingProduct `json:"data"`
	Meta TotalMeta           `json:"meta"`
}
