package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid order parameters.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates no order exists for the supplied identifier.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrOrderUnavailable indicates the order store is currently unreachable.
	ErrOrderUnavailable = errors.New("orders: unavailable")
)

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetOrder fetches a single order by its persisted identifier.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	return order, nil
}

// ListByEmail returns all orders placed with the supplied customer email.
func (s *orderService) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}

	orders, err := s.orders.ListByEmail(ctx, email)
	if err != nil {
		return nil, s.translate(err)
	}
	return orders, nil
}

// ListByStatus returns all orders in the supplied lifecycle state. A blank
// status defaults to completed, the state reconciliation leaves orders in.
func (s *orderService) ListByStatus(ctx context.Context, status OrderStatus) ([]Order, error) {
	if strings.TrimSpace(string(status)) == "" {
		status = domain.OrderStatusCompleted
	}
	if !domain.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}

	orders, err := s.orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, s.translate(err)
	}
	return orders, nil
}

// UpdateStatus moves an order to a new lifecycle state.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidOrderStatus(cmd.Status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, cmd.Status, s.now())
	if err != nil {
		return Order{}, s.translate(err)
	}

	s.logger(ctx, "orders.status_updated", map[string]any{
		"orderId": order.ID,
		"status":  string(order.Status),
	})
	return order, nil
}

// DeleteOrder removes an order permanently.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.translate(err)
	}

	s.logger(ctx, "orders.deleted", map[string]any{"orderId": orderID})
	return nil
}

func (s *orderService) translate(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
