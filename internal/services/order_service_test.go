package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/repositories"
)

type fakeOrderRepo struct {
	findByIDFunc     func(ctx context.Context, orderID string) (domain.Order, error)
	listByEmailFunc  func(ctx context.Context, email string) ([]domain.Order, error)
	listByStatusFunc func(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	updateStatusFunc func(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error)
	deleteFunc       func(ctx context.Context, orderID string) error
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findByIDFunc(ctx, orderID)
}

func (r *fakeOrderRepo) FindByReference(context.Context, string) (domain.Order, error) {
	return domain.Order{}, errors.New("not implemented")
}

func (r *fakeOrderRepo) UpsertByReference(context.Context, string, repositories.OrderMergeFunc) (domain.Order, error) {
	return domain.Order{}, errors.New("not implemented")
}

func (r *fakeOrderRepo) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return r.listByEmailFunc(ctx, email)
}

func (r *fakeOrderRepo) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return r.listByStatusFunc(ctx, status)
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	return r.updateStatusFunc(ctx, orderID, status, updatedAt)
}

func (r *fakeOrderRepo) Delete(ctx context.Context, orderID string) error {
	return r.deleteFunc(ctx, orderID)
}

type fakeRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e fakeRepoError) Error() string       { return "repository error" }
func (e fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e fakeRepoError) IsConflict() bool    { return e.conflict }
func (e fakeRepoError) IsUnavailable() bool { return e.unavailable }

func newOrderService(t *testing.T, repo *fakeOrderRepo) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: repo,
		Clock:  func() time.Time { return time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewOrderService returned error: %v", err)
	}
	return svc
}

func TestGetOrder(t *testing.T) {
	repo := &fakeOrderRepo{
		findByIDFunc: func(_ context.Context, orderID string) (domain.Order, error) {
			if orderID != "order-1" {
				return domain.Order{}, fakeRepoError{notFound: true}
			}
			return domain.Order{ID: "order-1", Status: domain.OrderStatusCompleted}, nil
		},
	}
	svc := newOrderService(t, repo)

	order, err := svc.GetOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if order.ID != "order-1" {
		t.Fatalf("unexpected order %+v", order)
	}

	if _, err := svc.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), "  "); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestListByEmailNormalisesInput(t *testing.T) {
	var gotEmail string
	repo := &fakeOrderRepo{
		listByEmailFunc: func(_ context.Context, email string) ([]domain.Order, error) {
			gotEmail = email
			return []domain.Order{{ID: "order-1"}}, nil
		},
	}
	svc := newOrderService(t, repo)

	orders, err := svc.ListByEmail(context.Background(), "  Maha@Example.COM ")
	if err != nil {
		t.Fatalf("ListByEmail returned error: %v", err)
	}
	if gotEmail != "maha@example.com" {
		t.Errorf("email passed to repository = %q, want lowercased", gotEmail)
	}
	if len(orders) != 1 {
		t.Errorf("expected one order, got %d", len(orders))
	}

	if _, err := svc.ListByEmail(context.Background(), ""); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestListByStatusDefaultsToCompleted(t *testing.T) {
	var gotStatus domain.OrderStatus
	repo := &fakeOrderRepo{
		listByStatusFunc: func(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
			gotStatus = status
			return nil, nil
		},
	}
	svc := newOrderService(t, repo)

	if _, err := svc.ListByStatus(context.Background(), ""); err != nil {
		t.Fatalf("ListByStatus returned error: %v", err)
	}
	if gotStatus != domain.OrderStatusCompleted {
		t.Errorf("status = %q, want completed default", gotStatus)
	}

	if _, err := svc.ListByStatus(context.Background(), "bogus"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for unknown status, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	var gotStatus domain.OrderStatus
	var gotUpdatedAt time.Time
	repo := &fakeOrderRepo{
		updateStatusFunc: func(_ context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
			gotStatus = status
			gotUpdatedAt = updatedAt
			return domain.Order{ID: orderID, Status: status, UpdatedAt: updatedAt}, nil
		},
	}
	svc := newOrderService(t, repo)

	order, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "order-1", Status: domain.OrderStatusShipped})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if order.Status != domain.OrderStatusShipped || gotStatus != domain.OrderStatusShipped {
		t.Errorf("status = %q, want shipped", order.Status)
	}
	if gotUpdatedAt.IsZero() {
		t.Error("expected updatedAt to be stamped")
	}

	if _, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{OrderID: "order-1", Status: "bogus"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), UpdateOrderStatusCommand{Status: domain.OrderStatusShipped}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for missing id, got %v", err)
	}
}

func TestDeleteOrder(t *testing.T) {
	deleted := ""
	repo := &fakeOrderRepo{
		deleteFunc: func(_ context.Context, orderID string) error {
			if orderID == "missing" {
				return fakeRepoError{notFound: true}
			}
			deleted = orderID
			return nil
		},
	}
	svc := newOrderService(t, repo)

	if err := svc.DeleteOrder(context.Background(), "order-1"); err != nil {
		t.Fatalf("DeleteOrder returned error: %v", err)
	}
	if deleted != "order-1" {
		t.Errorf("deleted id = %q", deleted)
	}

	if err := svc.DeleteOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestRepositoryUnavailableTranslated(t *testing.T) {
	repo := &fakeOrderRepo{
		findByIDFunc: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, fakeRepoError{unavailable: true}
		},
	}
	svc := newOrderService(t, repo)

	if _, err := svc.GetOrder(context.Background(), "order-1"); !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected ErrOrderUnavailable, got %v", err)
	}
}
