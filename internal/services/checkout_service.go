package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/payments"
	"github.com/zainahstore/api/internal/pending"
)

const orderReferencePrefix = "ord_"

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid checkout parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutPaymentFailed indicates the gateway session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment session failed")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Pricing     *PricingEngine
	Gateway     payments.Provider
	Drafts      pending.Store
	DraftTTL    time.Duration
	SuccessURL  string
	CancelURL   string
	ReferenceID func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	pricing    *PricingEngine
	gateway    payments.Provider
	drafts     pending.Store
	draftTTL   time.Duration
	successURL string
	cancelURL  string
	newRef     func() string
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing engine is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	if deps.Drafts == nil {
		return nil, errors.New("checkout service: draft store is required")
	}

	newRef := deps.ReferenceID
	if newRef == nil {
		newRef = func() string {
			return orderReferencePrefix + ulid.Make().String()
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := deps.DraftTTL
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}

	return &checkoutService{
		pricing:    deps.Pricing,
		gateway:    deps.Gateway,
		drafts:     deps.Drafts,
		draftTTL:   ttl,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		newRef:     newRef,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession prices the cart, stages a draft order, and opens a
// hosted gateway session for it. The draft is rolled back if the gateway
// rejects the session so an abandoned attempt leaves no trace.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error) {
	if s == nil || s.gateway == nil || s.drafts == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}

	if err := validateCheckoutCommand(cmd); err != nil {
		return CheckoutSession{}, err
	}

	shipping := ShippingContext{Country: cmd.Country, GulfCountry: cmd.GulfCountry}
	breakdown, err := s.pricing.Quote(cmd.Items, shipping, cmd.DepositMode)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return CheckoutSession{}, fmt.Errorf("%w: %s", ErrCheckoutInvalidInput, err)
		}
		return CheckoutSession{}, err
	}

	referenceID := s.newRef()
	now := s.now()
	draft := s.buildDraft(cmd, breakdown, referenceID, now)

	if err := s.drafts.Put(ctx, draft, now, s.draftTTL); err != nil {
		s.logger(ctx, "checkout.draft_stage_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
		return CheckoutSession{}, ErrCheckoutUnavailable
	}

	session, err := s.gateway.CreateSession(ctx, payments.CreateSessionRequest{
		ClientReferenceID: referenceID,
		Products:          sessionProducts(breakdown.LineItems),
		SuccessURL:        s.successURL,
		CancelURL:         s.cancelURL,
		Metadata:          s.sessionMetadata(cmd, draft),
	})
	if err != nil {
		s.rollbackDraft(ctx, referenceID)
		if errors.Is(err, payments.ErrInvalidInput) {
			return CheckoutSession{}, fmt.Errorf("%w: %s", ErrCheckoutInvalidInput, err)
		}
		s.logger(ctx, "checkout.session_create_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrCheckoutPaymentFailed, err)
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"referenceId": referenceID,
		"sessionId":   session.SessionID,
		"amount":      breakdown.AmountToCharge,
		"depositMode": cmd.DepositMode,
	})

	return CheckoutSession{
		SessionID:   session.SessionID,
		ReferenceID: referenceID,
		PaymentURL:  s.gateway.PaymentLink(session.SessionID),
		Breakdown:   breakdown,
	}, nil
}

func (s *checkoutService) buildDraft(cmd CreateCheckoutSessionCommand, breakdown PriceBreakdown, referenceID string, now time.Time) DraftOrder {
	products := make([]domain.OrderProduct, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		products = append(products, item.ToOrderProduct())
	}

	return DraftOrder{
		ReferenceID:     referenceID,
		Products:        products,
		AmountToCharge:  breakdown.AmountToCharge,
		ShippingFee:     breakdown.ShippingFee,
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		Phone:           strings.TrimSpace(cmd.Phone),
		Email:           strings.ToLower(strings.TrimSpace(cmd.Email)),
		Country:         domain.NormalizeCountry(cmd.Country, cmd.GulfCountry),
		Wilayat:         strings.TrimSpace(cmd.Wilayat),
		Description:     strings.TrimSpace(cmd.Description),
		DepositMode:     cmd.DepositMode,
		RemainingAmount: breakdown.RemainingAmount,
		GiftCard:        domain.NormalizeGiftCard(cmd.GiftCard),
		CreatedAt:       now,
	}
}

func (s *checkoutService) sessionMetadata(cmd CreateCheckoutSessionCommand, draft DraftOrder) map[string]any {
	metadata := map[string]any{
		"email":             draft.Email,
		"customer_name":     draft.CustomerName,
		"customer_phone":    draft.Phone,
		"country":           draft.Country,
		"wilayat":           draft.Wilayat,
		"shippingFee":       draft.ShippingFee,
		"internal_order_id": draft.ReferenceID,
		"source":            "storefront",
	}
	if draft.Description != "" {
		metadata["description"] = draft.Description
	}
	if cmd.DepositMode {
		metadata["deposit_mode"] = true
		metadata["remaining_amount"] = draft.RemainingAmount
	}
	return metadata
}

func (s *checkoutService) rollbackDraft(ctx context.Context, referenceID string) {
	if err := s.drafts.Delete(ctx, referenceID); err != nil && !errors.Is(err, pending.ErrNotFound) {
		s.logger(ctx, "checkout.draft_rollback_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
	}
}

func validateCheckoutCommand(cmd CreateCheckoutSessionCommand) error {
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrCheckoutInvalidInput)
	}
	return nil
}

func sessionProducts(lines []domain.ChargeLine) []payments.SessionProduct {
	products := make([]payments.SessionProduct, 0, len(lines))
	for _, line := range lines {
		products = append(products, payments.SessionProduct{
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitAmount: line.UnitAmount,
		})
	}
	return products
}
