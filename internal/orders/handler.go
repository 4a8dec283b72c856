package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/segmentio/kafka-go"

	"github.com/mesaflow/orders-service/internal/domain"
	"github.com/mesaflow/orders-service/internal/messaging"
)

// Request patterns served on the orders request topic.
const (
	PatternCreateOrder            = "createOrder"
	PatternCreateOrderWithStatus  = "createOrderWithStatus"
	PatternFindAllOrders          = "findAllOrders"
	PatternFindOneOrder           = "findOneOrder"
	PatternFindPaidOrderByTableID = "findPaidOrderByTableId"
	PatternOrderPositionByTableID = "getOrderPositionByTableId"
	PatternChangeOrderStatus      = "changeOrderStatus"
	PatternFindTopSelling         = "findTopSellingProducts"
	PatternFindKitchenOrders      = "findKitchenOrders"
	PatternMarkOrderAsDelivered   = "markOrderAsDelivered"
	PatternFindTableByID          = "findTableById"
)

// Handler dispatches bus requests to the engine and publishes the reply
// envelope on the topic named by the request's reply-to header.
type Handler struct {
	service  *Service
	tables   TableDirectory
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(service *Service, tables TableDirectory, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		tables:   tables,
		producer: producer,
		logger:   logger,
	}
}

type replyEnvelope struct {
	Data  any           `json:"data,omitempty"`
	Error *domain.Error `json:"error,omitempty"`
}

type createOrderResponse struct {
	Order             *domain.OrderWithProducts `json:"order"`
	PaymentPreference *domain.PaymentPreference `json:"paymentPreference"`
}

type orderRequest struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
}

type tableRequest struct {
	TableID    string `json:"table_id"`
	BusinessID string `json:"business_id"`
}

type findAllOrdersRequest struct {
	BusinessID string             `json:"business_id"`
	Status     domain.OrderStatus `json:"status"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
}

type pageRequest struct {
	BusinessID string `json:"business_id"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

type topSellingRequest struct {
	BusinessID string `json:"business_id"`
	Limit      int    `json:"limit"`
}

// HandleRequest serves one request message. Engine failures become
// error envelopes rather than consumer errors; only a failed reply
// publish propagates.
func (h *Handler) HandleRequest(ctx context.Context, msg kafka.Message) error {
	pattern := messaging.Header(msg, messaging.HeaderPattern)

	envelope := replyEnvelope{}
	result, err := h.dispatch(ctx, pattern, msg.Value)
	if err != nil {
		h.logger.Error("request failed", "pattern", pattern, "error", err, "status", domain.StatusCode(err))
		envelope.Error = domain.AsError(err, http.StatusInternalServerError)
	} else {
		envelope.Data = result
	}

	replyTo := messaging.Header(msg, messaging.HeaderReplyTo)
	if replyTo == "" {
		return nil
	}

	correlationID := messaging.Header(msg, messaging.HeaderCorrelationID)
	err = h.producer.Publish(ctx, replyTo, correlationID, envelope, kafka.Header{
		Key:   messaging.HeaderCorrelationID,
		Value: []byte(correlationID),
	})
	if err != nil {
		h.logger.Error("failed to publish reply", "pattern", pattern, "topic", replyTo, "error", err)
		return err
	}

	return nil
}

func (h *Handler) dispatch(ctx context.Context, pattern string, payload []byte) (any, error) {
	switch pattern {
	case PatternCreateOrder:
		req, err := decode[CreateOrderRequest](payload)
		if err != nil {
			return nil, err
		}
		order, err := h.service.Create(ctx, req, false)
		if err != nil {
			return nil, err
		}
		preference, err := h.service.CreatePaymentPreference(ctx, order)
		if err != nil {
			return nil, err
		}
		return createOrderResponse{Order: order, PaymentPreference: preference}, nil

	case PatternCreateOrderWithStatus:
		req, err := decode[CreateOrderRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.Create(ctx, req, true)

	case PatternFindAllOrders:
		req, err := decode[findAllOrdersRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.FindAll(ctx, req.BusinessID, req.Status, req.Page, req.Limit)

	case PatternFindOneOrder:
		req, err := decode[orderRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.FindOne(ctx, req.ID, req.BusinessID)

	case PatternFindPaidOrderByTableID:
		req, err := decode[tableRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.FindPaidOrderByTableID(ctx, req.TableID, req.BusinessID)

	case PatternOrderPositionByTableID:
		req, err := decode[tableRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.GetOrderPositionByTableID(ctx, req.TableID, req.BusinessID)

	case PatternChangeOrderStatus:
		req, err := decode[ChangeOrderStatusRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.ChangeStatus(ctx, req)

	case PatternFindTopSelling:
		req, err := decode[topSellingRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.FindTopSellingProducts(ctx, req.BusinessID, req.Limit)

	case PatternFindKitchenOrders:
		req, err := decode[pageRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.FindKitchenOrders(ctx, req.BusinessID, req.Page, req.Limit)

	case PatternMarkOrderAsDelivered:
		req, err := decode[orderRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.service.MarkOrderAsDelivered(ctx, req.ID, req.BusinessID)

	case PatternFindTableByID:
		req, err := decode[tableRequest](payload)
		if err != nil {
			return nil, err
		}
		return h.findTable(ctx, req.TableID, req.BusinessID)

	default:
		return nil, domain.NewValidation(fmt.Sprintf("unknown pattern %q", pattern))
	}
}

func (h *Handler) findTable(ctx context.Context, tableID, businessID string) (*domain.Table, error) {
	table, err := h.tables.FindByID(ctx, tableID, businessID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, domain.NewNotFound(fmt.Sprintf("table with id %s not found", tableID))
	}
	return table, nil
}

// HandlePaymentSucceeded consumes the one-way settlement event. Nobody
// waits on a reply, so failures are logged and the message is committed
// either way.
func (h *Handler) HandlePaymentSucceeded(ctx context.Context, msg kafka.Message) error {
	var evt domain.PaidOrderEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger.Error("invalid payment.succeeded payload", "error", err)
		return nil
	}

	if _, err := h.service.PaidOrder(ctx, evt); err != nil {
		h.logger.Error("failed to apply payment settlement", "error", err, "order_id", evt.OrderID, "business_id", evt.BusinessID)
	}

	return nil
}

func decode[T any](payload []byte) (T, error) {
	var req T
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, domain.NewValidation(fmt.Sprintf("invalid request payload: %v", err))
	}
	return req, nil
}
