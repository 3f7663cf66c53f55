package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/platform/httpx"
	"github.com/zainahstore/api/internal/services"
)

const maxCheckoutRequestBody = 64 * 1024

// CheckoutHandlers exposes the checkout-session and payment-confirmation endpoints.
type CheckoutHandlers struct {
	checkout  services.CheckoutService
	reconcile services.ReconciliationService
	limiter   rateLimiter
}

// CheckoutOption customises checkout handler construction.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimit throttles session creation per client address.
func WithCheckoutRateLimit(limit int, window time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newWindowLimiter(limit, window, nil)
	}
}

// NewCheckoutHandlers constructs the checkout endpoints.
func NewCheckoutHandlers(checkout services.CheckoutService, reconcile services.ReconciliationService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		checkout:  checkout,
		reconcile: reconcile,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create-checkout-session", h.createCheckoutSession)
	r.Post("/confirm-payment", h.confirmPayment)
}

type giftCardPayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Phone string `json:"phone"`
	Note  string `json:"note"`
}

func (p *giftCardPayload) toDomain() *domain.GiftCard {
	if p == nil {
		return nil
	}
	return domain.NormalizeGiftCard(&domain.GiftCard{
		From:  p.From,
		To:    p.To,
		Phone: p.Phone,
		Note:  p.Note,
	})
}

func giftCardFromDomain(card *domain.GiftCard) *giftCardPayload {
	if card == nil {
		return nil
	}
	return &giftCardPayload{
		From:  card.From,
		To:    card.To,
		Phone: card.Phone,
		Note:  card.Note,
	}
}

type cartItemPayload struct {
	ProductID    string            `json:"productId"`
	Name         string            `json:"name"`
	Price        float64           `json:"price"`
	Quantity     int               `json:"quantity"`
	Category     string            `json:"category"`
	Image        string            `json:"image"`
	Measurements map[string]string `json:"measurements"`
	GiftCard     *giftCardPayload  `json:"giftCard"`
}

type checkoutSessionRequest struct {
	Products     []cartItemPayload `json:"products"`
	CustomerName string            `json:"customerName"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email"`
	Country      string            `json:"country"`
	GulfCountry  string            `json:"gulfCountry"`
	Wilayat      string            `json:"wilayat"`
	Description  string            `json:"description"`
	DepositMode  bool              `json:"depositMode"`
	GiftCard     *giftCardPayload  `json:"giftCard"`
}

type checkoutSessionResponse struct {
	SessionID       string  `json:"sessionId"`
	ReferenceID     string  `json:"referenceId"`
	PaymentURL      string  `json:"paymentUrl"`
	AmountToCharge  int64   `json:"amountToCharge"`
	ShippingFee     float64 `json:"shippingFee"`
	DepositMode     bool    `json:"depositMode"`
	RemainingAmount float64 `json:"remainingAmount,omitempty"`
}

type confirmPaymentRequest struct {
	ReferenceID string `json:"referenceId"`
}

func (h *CheckoutHandlers) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientAddress(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]domain.CartItem, 0, len(req.Products))
	for _, product := range req.Products {
		items = append(items, domain.CartItem{
			ProductID:    strings.TrimSpace(product.ProductID),
			Name:         strings.TrimSpace(product.Name),
			Price:        product.Price,
			Quantity:     product.Quantity,
			Category:     strings.TrimSpace(product.Category),
			Image:        strings.TrimSpace(product.Image),
			Measurements: product.Measurements,
			GiftCard:     product.GiftCard.toDomain(),
		})
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		Items:        items,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Email:        req.Email,
		Country:      req.Country,
		GulfCountry:  req.GulfCountry,
		Wilayat:      req.Wilayat,
		Description:  req.Description,
		DepositMode:  req.DepositMode,
		GiftCard:     req.GiftCard.toDomain(),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{
		SessionID:       session.SessionID,
		ReferenceID:     session.ReferenceID,
		PaymentURL:      session.PaymentURL,
		AmountToCharge:  session.Breakdown.AmountToCharge,
		ShippingFee:     session.Breakdown.ShippingFee,
		DepositMode:     session.Breakdown.DepositMode,
		RemainingAmount: session.Breakdown.RemainingAmount,
	})
}

func (h *CheckoutHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconcile == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "reconciliation service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "referenceId is required", http.StatusBadRequest))
		return
	}

	order, err := h.reconcile.ConfirmPayment(ctx, services.ConfirmPaymentCommand{ReferenceID: req.ReferenceID})
	if err != nil {
		h.writeConfirmError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderToResponse(order))
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", err.Error(), http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to create checkout session", http.StatusInternalServerError))
	}
}

func (h *CheckoutHandlers) writeConfirmError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReconcileInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReconcileSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "no payment session found for reference", http.StatusNotFound))
	case errors.Is(err, services.ErrReconcilePaymentNotSuccessful):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_successful", "payment has not completed for this session", http.StatusBadRequest))
	case errors.Is(err, services.ErrReconcileUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("reconcile_unavailable", "payment confirmation temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("reconcile_error", "failed to confirm payment", http.StatusInternalServerError))
	}
}
