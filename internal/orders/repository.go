package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mesaflow/orders-service/internal/domain"
)

const orderColumns = `id, business_id, table_id, status, total_amount, total_items, paid, paid_at, paid_method_type, created_at`

// OrderRepository is the Postgres implementation of Repository.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, items []domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, business_id, table_id, status, total_amount, total_items, paid, paid_at, paid_method_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $10)
	`, order.ID, order.BusinessID, order.TableID, order.Status, order.TotalAmount,
		order.TotalItems, order.Paid, order.PaidAt, order.PaidMethodType, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].OrderID = order.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, items[i].ID, items[i].OrderID, items[i].ProductID, items[i].Price, items[i].Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (r *OrderRepository) GetByIDAndBusiness(ctx context.Context, id, businessID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND business_id = $2
	`, id, businessID)
	return scanOrder(row)
}

func (r *OrderRepository) GetDetails(ctx context.Context, id, businessID string) (*domain.OrderDetails, error) {
	details := &domain.OrderDetails{}

	var paidAt sql.NullTime
	var paidMethodType sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.business_id, o.table_id, o.status, o.total_amount, o.total_items,
		       o.paid, o.paid_at, o.paid_method_type, o.created_at, t.number
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.id = $1 AND o.business_id = $2
	`, id, businessID).Scan(
		&details.ID, &details.BusinessID, &details.TableID, &details.Status,
		&details.TotalAmount, &details.TotalItems, &details.Paid,
		&paidAt, &paidMethodType, &details.CreatedAt, &details.TableNumber,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	applyNullable(&details.Order, paidAt, paidMethodType)

	items, err := r.loadItems(ctx, []string{details.ID})
	if err != nil {
		return nil, err
	}
	details.Items = items[details.ID]
	if details.Items == nil {
		details.Items = []domain.OrderItem{}
	}

	return details, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, paid = TRUE, paid_at = $2, updated_at = NOW()
		WHERE id = $3
	`, domain.OrderStatusPaid, paidAt, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) CountByStatus(ctx context.Context, businessID string, status domain.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE business_id = $1 AND status = $2
	`, businessID, status).Scan(&count)
	return count, err
}

func (r *OrderRepository) CountByStatuses(ctx context.Context, businessID string, statuses []domain.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE business_id = $1 AND status = ANY($2)
	`, businessID, pq.Array(statusStrings(statuses))).Scan(&count)
	return count, err
}

func (r *OrderRepository) ListByStatus(ctx context.Context, businessID string, status domain.OrderStatus, offset, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE business_id = $1 AND status = $2
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4
	`, businessID, status, offset, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *OrderRepository) ListPaid(ctx context.Context, businessID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE business_id = $1 AND status = $2
		ORDER BY paid_at ASC
	`, businessID, domain.OrderStatusPaid)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *OrderRepository) ListPaidDetails(ctx context.Context, businessID string, offset, limit int) ([]domain.OrderDetails, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.business_id, o.table_id, o.status, o.total_amount, o.total_items,
		       o.paid, o.paid_at, o.paid_method_type, o.created_at, t.number
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE o.business_id = $1 AND o.status = $2
		ORDER BY o.paid_at ASC
		OFFSET $3 LIMIT $4
	`, businessID, domain.OrderStatusPaid, offset, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var details []domain.OrderDetails
	var orderIDs []string

	for rows.Next() {
		var d domain.OrderDetails
		var paidAt sql.NullTime
		var paidMethodType sql.NullString
		err := rows.Scan(
			&d.ID, &d.BusinessID, &d.TableID, &d.Status, &d.TotalAmount, &d.TotalItems,
			&d.Paid, &paidAt, &paidMethodType, &d.CreatedAt, &d.TableNumber,
		)
		if err != nil {
			return nil, err
		}
		applyNullable(&d.Order, paidAt, paidMethodType)
		d.Items = []domain.OrderItem{}
		details = append(details, d)
		orderIDs = append(orderIDs, d.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.OrderDetails{}, nil
	}

	itemsByOrder, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if items := itemsByOrder[details[i].ID]; items != nil {
			details[i].Items = items
		}
	}

	return details, nil
}

func (r *OrderRepository) FirstPaidByTable(ctx context.Context, tableID, businessID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE table_id = $1 AND business_id = $2 AND status = $3
		ORDER BY paid_at ASC
		LIMIT 1
	`, tableID, businessID, domain.OrderStatusPaid)
	return scanOrder(row)
}

// TopSelling aggregates quantity sold per product across PAID and
// DELIVERED orders at the storage layer.
func (r *OrderRepository) TopSelling(ctx context.Context, businessID string, limit int) ([]domain.ProductSales, error) {
	statuses := []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusDelivered}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.product_id, SUM(oi.quantity)::float AS total_sold
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.business_id = $1 AND o.status = ANY($2) AND oi.product_id <> $3
		GROUP BY oi.product_id
		ORDER BY total_sold DESC
		LIMIT $4
	`, businessID, pq.Array(statusStrings(statuses)), domain.ServiceChargeProductID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sales []domain.ProductSales
	for rows.Next() {
		var s domain.ProductSales
		if err := rows.Scan(&s.ProductID, &s.TotalSold); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	itemsByOrder := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Price, &item.Quantity); err != nil {
			return nil, err
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return itemsByOrder, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	order := &domain.Order{}
	var paidAt sql.NullTime
	var paidMethodType sql.NullString

	err := row.Scan(
		&order.ID, &order.BusinessID, &order.TableID, &order.Status,
		&order.TotalAmount, &order.TotalItems, &order.Paid,
		&paidAt, &paidMethodType, &order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	applyNullable(order, paidAt, paidMethodType)

	return order, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func applyNullable(order *domain.Order, paidAt sql.NullTime, paidMethodType sql.NullString) {
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if paidMethodType.Valid {
		order.PaidMethodType = paidMethodType.String
	}
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
