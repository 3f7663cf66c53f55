package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/platform/httpx"
	"github.com/zainahstore/api/internal/services"
)

const maxOrderRequestBody = 8 * 1024

// OrderHandlers exposes order read and admin endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs the order endpoints.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listByStatus)
	r.Get("/order/{orderId}", h.getByID)
	r.Get("/{email}", h.listByEmail)
	r.Patch("/update-order-status/{orderId}", h.updateStatus)
	r.Delete("/delete-order/{orderId}", h.deleteOrder)
}

type orderProductPayload struct {
	ProductID    string            `json:"productId"`
	Name         string            `json:"name"`
	Price        float64           `json:"price"`
	Quantity     int               `json:"quantity"`
	Category     string            `json:"category"`
	Image        string            `json:"image,omitempty"`
	Measurements map[string]string `json:"measurements,omitempty"`
	GiftCard     *giftCardPayload  `json:"giftCard,omitempty"`
}

type orderResponse struct {
	ID               string                `json:"id"`
	ReferenceID      string                `json:"referenceId"`
	PaymentSessionID string                `json:"paymentSessionId,omitempty"`
	Status           string                `json:"status"`
	Products         []orderProductPayload `json:"products"`
	Amount           float64               `json:"amount"`
	ShippingFee      float64               `json:"shippingFee"`
	CustomerName     string                `json:"customerName"`
	Phone            string                `json:"phone"`
	Email            string                `json:"email"`
	Country          string                `json:"country"`
	Wilayat          string                `json:"wilayat,omitempty"`
	Description      string                `json:"description,omitempty"`
	DepositMode      bool                  `json:"depositMode"`
	RemainingAmount  float64               `json:"remainingAmount,omitempty"`
	GiftCard         *giftCardPayload      `json:"giftCard,omitempty"`
	PaidAt           string                `json:"paidAt,omitempty"`
	CreatedAt        string                `json:"createdAt,omitempty"`
	UpdatedAt        string                `json:"updatedAt,omitempty"`
}

func orderToResponse(order domain.Order) orderResponse {
	products := make([]orderProductPayload, 0, len(order.Products))
	for _, product := range order.Products {
		products = append(products, orderProductPayload{
			ProductID:    product.ProductID,
			Name:         product.Name,
			Price:        product.Price,
			Quantity:     product.Quantity,
			Category:     product.Category,
			Image:        product.Image,
			Measurements: product.Measurements,
			GiftCard:     giftCardFromDomain(product.GiftCard),
		})
	}

	resp := orderResponse{
		ID:               order.ID,
		ReferenceID:      order.ReferenceID,
		PaymentSessionID: order.PaymentSessionID,
		Status:           string(order.Status),
		Products:         products,
		Amount:           order.Amount,
		ShippingFee:      order.ShippingFee,
		CustomerName:     order.CustomerName,
		Phone:            order.Phone,
		Email:            order.Email,
		Country:          order.Country,
		Wilayat:          order.Wilayat,
		Description:      order.Description,
		DepositMode:      order.DepositMode,
		RemainingAmount:  order.RemainingAmount,
		GiftCard:         giftCardFromDomain(order.GiftCard),
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
	}
	if order.PaidAt != nil {
		resp.PaidAt = formatTime(*order.PaidAt)
	}
	return resp
}

func (h *OrderHandlers) listByStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrdersUnavailable(ctx, w)
		return
	}

	status := domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	orders, err := h.orders.ListByStatus(ctx, status)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, ordersToResponse(orders))
}

func (h *OrderHandlers) getByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrdersUnavailable(ctx, w)
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderToResponse(order))
}

func (h *OrderHandlers) listByEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrdersUnavailable(ctx, w)
		return
	}

	orders, err := h.orders.ListByEmail(ctx, chi.URLParam(r, "email"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, ordersToResponse(orders))
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrdersUnavailable(ctx, w)
		return
	}

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderId"),
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderToResponse(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrdersUnavailable(ctx, w)
		return
	}

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderId")); err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"deleted": true})
}

func ordersToResponse(orders []domain.Order) []orderResponse {
	payload := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, orderToResponse(order))
	}
	return payload
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUnavailable):
		writeOrdersUnavailable(ctx, w)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeOrdersUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
}
