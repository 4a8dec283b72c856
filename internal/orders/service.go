package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mesaflow/orders-service/internal/domain"
)

// Repository is the persistence contract for orders, scoped by business.
// Implementations return (nil, nil) when a record is absent.
type Repository interface {
	Create(ctx context.Context, order *domain.Order, items []domain.OrderItem) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDAndBusiness(ctx context.Context, id, businessID string) (*domain.Order, error)
	GetDetails(ctx context.Context, id, businessID string) (*domain.OrderDetails, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (*domain.Order, error)
	CountByStatus(ctx context.Context, businessID string, status domain.OrderStatus) (int, error)
	CountByStatuses(ctx context.Context, businessID string, statuses []domain.OrderStatus) (int, error)
	ListByStatus(ctx context.Context, businessID string, status domain.OrderStatus, offset, limit int) ([]domain.Order, error)
	ListPaid(ctx context.Context, businessID string) ([]domain.Order, error)
	ListPaidDetails(ctx context.Context, businessID string, offset, limit int) ([]domain.OrderDetails, error)
	FirstPaidByTable(ctx context.Context, tableID, businessID string) (*domain.Order, error)
	TopSelling(ctx context.Context, businessID string, limit int) ([]domain.ProductSales, error)
}

// CatalogClient is the product catalog RPC contract. The catalog owns
// product truth; all lookups are scoped to one business.
type CatalogClient interface {
	ValidateProducts(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error)
	GetAvailableProductsByIDs(ctx context.Context, ids []int64, businessID string) ([]domain.Product, error)
}

// PaymentClient is the payment gateway RPC contract.
type PaymentClient interface {
	CreatePreference(ctx context.Context, pref domain.PreferenceRequest) (*domain.PaymentPreference, error)
}

// TableDirectory resolves tables within one business.
type TableDirectory interface {
	FindByNumber(ctx context.Context, number int, businessID string) (*domain.Table, error)
	FindByID(ctx context.Context, id, businessID string) (*domain.Table, error)
}

// Service is the order lifecycle engine: creation, status transitions,
// payment marking and the derived read views.
type Service struct {
	repo     Repository
	catalog  CatalogClient
	payments PaymentClient
	tables   TableDirectory
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, catalog CatalogClient, payments PaymentClient, tables TableDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		payments: payments,
		tables:   tables,
		logger:   logger,
		validate: validator.New(),
	}
}

type CreateOrderItem struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type CreateOrderRequest struct {
	BusinessID     string             `json:"business_id" validate:"required"`
	Table          int                `json:"table" validate:"required"`
	Items          []CreateOrderItem  `json:"items" validate:"required,min=1,dive"`
	ServiceCharge  bool               `json:"service_charge"`
	Status         domain.OrderStatus `json:"status"`
	PaidMethodType string             `json:"paid_method_type"`
}

type ChangeOrderStatusRequest struct {
	ID         string             `json:"id" validate:"required"`
	BusinessID string             `json:"business_id" validate:"required"`
	Status     domain.OrderStatus `json:"status" validate:"required"`
}

// Create builds and persists an order: prices the line items via the
// catalog, resolves the table, applies the optional service charge and
// decorates the result with product names. withStatus allows the caller
// to force the initial status; otherwise orders start PENDING.
//
// Any failure is logged and re-signaled with the original message,
// defaulting to a client error when the cause carries no status.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, withStatus bool) (*domain.OrderWithProducts, error) {
	order, err := s.create(ctx, req, withStatus)
	if err != nil {
		s.logger.Error("failed to create order", "error", err, "business_id", req.BusinessID, "table", req.Table)
		return nil, domain.AsError(err, http.StatusBadRequest)
	}
	return order, nil
}

func (s *Service) create(ctx context.Context, req CreateOrderRequest, withStatus bool) (*domain.OrderWithProducts, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidation(err.Error())
	}

	// Pricing is looked up before the table so that a catalog outage is
	// reported ahead of a missing table.
	products, err := s.catalog.ValidateProducts(ctx, distinctProductIDs(req.Items), req.BusinessID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	table, err := s.tables.FindByNumber(ctx, req.Table, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("table with number %d not found for business %s", req.Table, req.BusinessID))
	}

	var totalAmount float64
	var totalItems int
	items := make([]domain.OrderItem, 0, len(req.Items)+1)
	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, domain.NewValidation(fmt.Sprintf("product with id %d not found in catalog", line.ProductID))
		}
		totalAmount += product.Price * float64(line.Quantity)
		totalItems += line.Quantity
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Price:     product.Price,
			Quantity:  line.Quantity,
		})
	}

	// The surcharge line is priced off the pre-charge subtotal and does
	// not count towards totalItems.
	if req.ServiceCharge {
		charge := totalAmount * domain.ServiceChargeRate
		items = append(items, domain.OrderItem{
			ProductID: domain.ServiceChargeProductID,
			Price:     charge,
			Quantity:  1,
		})
		totalAmount += charge
	}

	status := domain.OrderStatusPending
	if withStatus && req.Status != "" {
		status = req.Status
	}

	now := time.Now().UTC()
	order := &domain.Order{
		BusinessID:     req.BusinessID,
		TableID:        table.ID,
		Status:         status,
		TotalAmount:    totalAmount,
		TotalItems:     totalItems,
		PaidMethodType: req.PaidMethodType,
		CreatedAt:      now,
	}
	if status == domain.OrderStatusPaid {
		order.Paid = true
		order.PaidAt = &now
	}

	if err := s.repo.Create(ctx, order, items); err != nil {
		return nil, domain.NewInternal(fmt.Sprintf("failed to persist order: %v", err))
	}

	s.logger.Info("order created", "order_id", order.ID, "business_id", order.BusinessID, "total_amount", order.TotalAmount)

	return &domain.OrderWithProducts{
		Order: *order,
		Items: decorateItems(items, byID),
	}, nil
}

// CreatePaymentPreference forwards the order's line summary to the
// payment gateway and returns its response unchanged.
func (s *Service) CreatePaymentPreference(ctx context.Context, order *domain.OrderWithProducts) (*domain.PaymentPreference, error) {
	pref := domain.PreferenceRequest{
		OrderID:    order.ID,
		BusinessID: order.BusinessID,
		Items:      make([]domain.PreferenceItem, len(order.Items)),
	}
	for i, item := range order.Items {
		pref.Items[i] = domain.PreferenceItem{
			ID:       item.ProductID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	preference, err := s.payments.CreatePreference(ctx, pref)
	if err != nil {
		s.logger.Error("failed to create payment preference", "error", err, "order_id", order.ID, "business_id", order.BusinessID)
		return nil, err
	}

	return preference, nil
}

func (s *Service) FindAll(ctx context.Context, businessID string, status domain.OrderStatus, page, limit int) (*domain.OrdersPage, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.repo.CountByStatus(ctx, businessID, status)
	if err != nil {
		s.logger.Error("failed to count orders", "error", err, "business_id", businessID, "status", status)
		return nil, err
	}

	data, err := s.repo.ListByStatus(ctx, businessID, status, (page-1)*limit, limit)
	if err != nil {
		s.logger.Error("failed to list orders", "error", err, "business_id", businessID, "status", status)
		return nil, err
	}
	if data == nil {
		data = []domain.Order{}
	}

	return &domain.OrdersPage{
		Data: data,
		Meta: domain.PageMeta{
			Total:    total,
			Page:     page,
			LastPage: lastPage(total, limit),
		},
	}, nil
}

func (s *Service) FindOne(ctx context.Context, id, businessID string) (*domain.OrderWithProducts, error) {
	details, err := s.repo.GetDetails(ctx, id, businessID)
	if err != nil {
		s.logger.Error("failed to get order", "error", err, "order_id", id, "business_id", businessID)
		return nil, err
	}
	if details == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("order with id %s not found", id))
	}

	ids := make([]int64, 0, len(details.Items))
	for _, item := range details.Items {
		if item.ProductID != domain.ServiceChargeProductID {
			ids = append(ids, item.ProductID)
		}
	}

	byID := map[int64]domain.Product{}
	if len(ids) > 0 {
		products, err := s.catalog.ValidateProducts(ctx, ids, businessID)
		if err != nil {
			s.logger.Error("failed to fetch products for order", "error", err, "order_id", id, "business_id", businessID)
			return nil, err
		}
		for _, p := range products {
			byID[p.ID] = p
		}
		for _, item := range details.Items {
			if item.ProductID == domain.ServiceChargeProductID {
				continue
			}
			if _, ok := byID[item.ProductID]; !ok {
				return nil, domain.NewValidation(fmt.Sprintf("product with id %d not found in catalog", item.ProductID))
			}
		}
	}

	return &domain.OrderWithProducts{
		Order: details.Order,
		Items: decorateItems(details.Items, byID),
	}, nil
}

func (s *Service) FindPaidOrderByTableID(ctx context.Context, tableID, businessID string) (*domain.Order, error) {
	table, err := s.lookupTable(ctx, tableID, businessID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FirstPaidByTable(ctx, table.ID, businessID)
	if err != nil {
		s.logger.Error("failed to find paid order for table", "error", err, "table_id", tableID, "business_id", businessID)
		return nil, err
	}
	if order == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("no paid order found for table with id %s", tableID))
	}

	return order, nil
}

// GetOrderPositionByTableID ranks the table's earliest paid order
// within the business-wide paid queue, 1-based.
func (s *Service) GetOrderPositionByTableID(ctx context.Context, tableID, businessID string) (int, error) {
	table, err := s.lookupTable(ctx, tableID, businessID)
	if err != nil {
		return 0, err
	}

	queue, err := s.repo.ListPaid(ctx, businessID)
	if err != nil {
		s.logger.Error("failed to list paid orders", "error", err, "business_id", businessID)
		return 0, err
	}
	if len(queue) == 0 {
		return 0, domain.NewNotFound(fmt.Sprintf("no paid orders found for business %s", businessID))
	}

	for i, order := range queue {
		if order.TableID == table.ID {
			return i + 1, nil
		}
	}

	return 0, domain.NewNotFound(fmt.Sprintf("no paid order found for table with id %s", tableID))
}

// ChangeStatus moves an order to the given status. Transitions are
// unconstrained apart from business ownership; re-applying the current
// status is a no-op that performs no write.
func (s *Service) ChangeStatus(ctx context.Context, req ChangeOrderStatusRequest) (*domain.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidation(err.Error())
	}

	order, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		s.logger.Error("failed to get order", "error", err, "order_id", req.ID)
		return nil, err
	}
	if order == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("order with id %s not found", req.ID))
	}

	if order.BusinessID != req.BusinessID {
		s.logger.Warn("cross-business status change rejected", "order_id", req.ID, "business_id", req.BusinessID)
		return nil, domain.NewForbidden(fmt.Sprintf("order with id %s does not belong to business %s", req.ID, req.BusinessID))
	}

	if order.Status == req.Status {
		return order, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, req.ID, req.Status)
	if err != nil {
		s.logger.Error("failed to update order status", "error", err, "order_id", req.ID, "status", req.Status)
		return nil, err
	}
	if updated == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("order with id %s not found", req.ID))
	}

	return updated, nil
}

// PaidOrder applies a payment settlement notification. The lookup is a
// single id+business query, so a missing order and a wrong business
// both come back as not-found.
func (s *Service) PaidOrder(ctx context.Context, evt domain.PaidOrderEvent) (*domain.Order, error) {
	s.logger.Info("order paid", "order_id", evt.OrderID, "business_id", evt.BusinessID)

	existing, err := s.repo.GetByIDAndBusiness(ctx, evt.OrderID, evt.BusinessID)
	if err != nil {
		s.logger.Error("failed to get order", "error", err, "order_id", evt.OrderID, "business_id", evt.BusinessID)
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("order with id %s not found", evt.OrderID))
	}

	order, err := s.repo.MarkPaid(ctx, evt.OrderID, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to mark order as paid", "error", err, "order_id", evt.OrderID)
		return nil, err
	}

	return order, nil
}

// MarkOrderAsDelivered transitions an order to DELIVERED and returns it
// with its line items and table number. Already-delivered orders are
// returned unchanged without a write.
func (s *Service) MarkOrderAsDelivered(ctx context.Context, id, businessID string) (*domain.OrderDetails, error) {
	details, err := s.repo.GetDetails(ctx, id, businessID)
	if err != nil {
		s.logger.Error("failed to get order", "error", err, "order_id", id, "business_id", businessID)
		return nil, err
	}
	if details == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("order with id %s not found", id))
	}

	if details.Status == domain.OrderStatusDelivered {
		return details, nil
	}

	if _, err := s.repo.UpdateStatus(ctx, id, domain.OrderStatusDelivered); err != nil {
		s.logger.Error("failed to mark order as delivered", "error", err, "order_id", id)
		return nil, err
	}
	details.Status = domain.OrderStatusDelivered

	return details, nil
}

// FindKitchenOrders pages through PAID orders in settlement order,
// decorated with table numbers and product names. A catalog failure
// degrades the decoration instead of failing the read.
func (s *Service) FindKitchenOrders(ctx context.Context, businessID string, page, limit int) (*domain.KitchenOrdersPage, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.repo.CountByStatus(ctx, businessID, domain.OrderStatusPaid)
	if err != nil {
		s.logger.Error("failed to count paid orders", "error", err, "business_id", businessID)
		return nil, err
	}
	if total == 0 {
		return &domain.KitchenOrdersPage{
			Data: []domain.KitchenOrder{},
			Meta: domain.PageMeta{Total: 0, Page: page, LastPage: 0},
		}, nil
	}

	details, err := s.repo.ListPaidDetails(ctx, businessID, (page-1)*limit, limit)
	if err != nil {
		s.logger.Error("failed to list paid orders", "error", err, "business_id", businessID)
		return nil, err
	}

	idSet := map[int64]struct{}{}
	var ids []int64
	for _, d := range details {
		for _, item := range d.Items {
			if _, seen := idSet[item.ProductID]; !seen {
				idSet[item.ProductID] = struct{}{}
				ids = append(ids, item.ProductID)
			}
		}
	}

	byID := map[int64]domain.Product{}
	if len(ids) > 0 {
		products, err := s.catalog.GetProductsByIDs(ctx, ids, businessID)
		if err != nil {
			// Kitchen reads keep working through a catalog outage;
			// items fall back to placeholder names.
			s.logger.Error("failed to fetch products for kitchen orders", "error", err, "business_id", businessID)
		}
		for _, p := range products {
			byID[p.ID] = p
		}
	}

	data := make([]domain.KitchenOrder, len(details))
	for i, d := range details {
		items := make([]domain.KitchenOrderItem, len(d.Items))
		for j, item := range d.Items {
			name := "Unknown product"
			images := []string{}
			if product, ok := byID[item.ProductID]; ok {
				name = product.Name
				if product.Images != nil {
					images = product.Images
				}
			}
			items[j] = domain.KitchenOrderItem{
				ID:            item.ID,
				OrderID:       d.ID,
				ProductID:     item.ProductID,
				ProductName:   name,
				ProductImages: images,
				Quantity:      item.Quantity,
				Price:         item.Price,
			}
		}
		data[i] = domain.KitchenOrder{
			ID:          d.ID,
			Table:       d.TableNumber,
			TotalAmount: d.TotalAmount,
			TotalItems:  d.TotalItems,
			Status:      d.Status,
			Paid:        d.Paid,
			PaidAt:      d.PaidAt,
			CreatedAt:   d.CreatedAt,
			Items:       items,
		}
	}

	return &domain.KitchenOrdersPage{
		Data: data,
		Meta: domain.PageMeta{
			Total:    total,
			Page:     page,
			LastPage: lastPage(total, limit),
		},
	}, nil
}

// FindTopSellingProducts ranks products by quantity sold across PAID
// and DELIVERED orders. The aggregation runs at the storage layer; only
// the ids with sales are sent to the catalog for enrichment.
func (s *Service) FindTopSellingProducts(ctx context.Context, businessID string, limit int) (*domain.TopSellingPage, error) {
	if limit <= 0 {
		limit = 5
	}

	s.logger.Info("finding top selling products", "limit", limit, "business_id", businessID)

	qualifying := []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusDelivered}
	count, err := s.repo.CountByStatuses(ctx, businessID, qualifying)
	if err != nil {
		s.logger.Error("failed to count qualifying orders", "error", err, "business_id", businessID)
		return nil, err
	}
	if count == 0 {
		return emptyTopSellingPage(), nil
	}

	sales, err := s.repo.TopSelling(ctx, businessID, limit)
	if err != nil {
		s.logger.Error("failed to aggregate product sales", "error", err, "business_id", businessID)
		return nil, err
	}
	if len(sales) == 0 {
		return emptyTopSellingPage(), nil
	}

	ids := make([]int64, len(sales))
	soldByID := make(map[int64]float64, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ProductID
		soldByID[sale.ProductID] = sale.TotalSold
	}

	products, err := s.catalog.GetAvailableProductsByIDs(ctx, ids, businessID)
	if err != nil {
		s.logger.Error("failed to fetch product details", "error", err, "business_id", businessID)
		return nil, err
	}
	if len(products) == 0 {
		return emptyTopSellingPage(), nil
	}

	data := make([]domain.TopSellingProduct, len(products))
	for i, product := range products {
		data[i] = domain.TopSellingProduct{
			Product:   product,
			TotalSold: soldByID[product.ID],
		}
	}
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].TotalSold > data[j].TotalSold
	})

	return &domain.TopSellingPage{
		Data: data,
		Meta: domain.TotalMeta{Total: len(data)},
	}, nil
}

func (s *Service) lookupTable(ctx context.Context, tableID, businessID string) (*domain.Table, error) {
	table, err := s.tables.FindByID(ctx, tableID, businessID)
	if err != nil {
		s.logger.Error("failed to look up table", "error", err, "table_id", tableID, "business_id", businessID)
		return nil, err
	}
	if table == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("table with id %s not found", tableID))
	}
	return table, nil
}

func distinctProductIDs(items []CreateOrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func decorateItems(items []domain.OrderItem, byID map[int64]domain.Product) []domain.NamedOrderItem {
	named := make([]domain.NamedOrderItem, len(items))
	for i, item := range items {
		name := domain.ServiceChargeLabel
		if item.ProductID != domain.ServiceChargeProductID {
			name = byID[item.ProductID].Name
		}
		named[i] = domain.NamedOrderItem{OrderItem: item, Name: name}
	}
	return named
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}

func lastPage(total, limit int) int {
	return int(math.Ceil(float64(total) / float64(limit)))
}

func emptyTopSellingPage() *domain.TopSellingPage {
	return &domain.TopSellingPage{
		Data: []domain.TopSellingProduct{},
		Meta: domain.TotalMeta{Total: 0},
	}
}
