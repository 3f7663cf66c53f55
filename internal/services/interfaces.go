package services

import (
	"context"
	"time"

	domain "github.com/zainahstore/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CartItem           = domain.CartItem
	GiftCard           = domain.GiftCard
	Order              = domain.Order
	OrderProduct       = domain.OrderProduct
	OrderStatus        = domain.OrderStatus
	DraftOrder         = domain.DraftOrder
	PriceBreakdown     = domain.PriceBreakdown
	SystemHealthReport = domain.SystemHealthReport
)

// CheckoutService prices carts, stages draft orders, and opens hosted payment sessions.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error)
}

// ReconciliationService confirms payment sessions against the gateway and
// persists the resulting orders.
type ReconciliationService interface {
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
}

// OrderService exposes read and admin flows over persisted orders.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	ListByStatus(ctx context.Context, status OrderStatus) ([]Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// SystemService aggregates utility endpoints such as readiness reporting.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher notifies downstream consumers when an order is paid.
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, event OrderPaidEvent) error
}

// Command and DTO definitions ------------------------------------------------

// CreateCheckoutSessionCommand carries the storefront checkout payload.
type CreateCheckoutSessionCommand struct {
	Items        []CartItem
	CustomerName string
	Phone        string
	Email        string
	Country      string
	GulfCountry  string
	Wilayat      string
	Description  string
	DepositMode  bool
	GiftCard     *GiftCard
	SuccessURL   string
	CancelURL    string
}

// CheckoutSession is the storefront-facing result of opening a gateway session.
type CheckoutSession struct {
	SessionID   string
	ReferenceID string
	PaymentURL  string
	Breakdown   PriceBreakdown
}

// ConfirmPaymentCommand identifies the checkout attempt to reconcile.
type ConfirmPaymentCommand struct {
	ReferenceID string
}

// UpdateOrderStatusCommand moves an order to a new lifecycle state.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
}

// OrderPaidEvent is published after a paid session is persisted as an order.
type OrderPaidEvent struct {
	OrderID     string
	ReferenceID string
	SessionID   string
	Email       string
	Amount      float64
	DepositMode bool
	PaidAt      time.Time
}
