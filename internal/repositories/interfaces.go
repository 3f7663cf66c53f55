package repositories

import (
	"context"
	"time"

	domain "github.com/zainahstore/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderMergeFunc computes the order state to persist given the currently
// stored order, or nil when no order exists for the reference yet. It runs
// inside the upsert transaction and must be side-effect free.
type OrderMergeFunc func(existing *domain.Order) (domain.Order, error)

// OrderRepository persists reconciled orders keyed by their checkout reference.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByReference(ctx context.Context, referenceID string) (domain.Order, error)
	// UpsertByReference atomically inserts or merges the order for the
	// supplied reference. Concurrent calls for the same reference serialise
	// on the underlying transaction.
	UpsertByReference(ctx context.Context, referenceID string, merge OrderMergeFunc) (domain.Order, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error)
	Delete(ctx context.Context, orderID string) error
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
