package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/zainahstore/api/internal/domain"
	"github.com/zainahstore/api/internal/payments"
	"github.com/zainahstore/api/internal/pending"
	"github.com/zainahstore/api/internal/repositories"
)

const defaultSessionScanLimit = 20

var (
	// ErrReconcileInvalidInput indicates the caller supplied no reference id.
	ErrReconcileInvalidInput = errors.New("reconcile: invalid input")
	// ErrReconcileSessionNotFound indicates no gateway session was visible for
	// the reference. The session may simply not be listed yet, so callers
	// should treat this as retryable.
	ErrReconcileSessionNotFound = errors.New("reconcile: session not found")
	// ErrReconcilePaymentNotSuccessful indicates the gateway has not confirmed
	// payment for the session. Nothing is persisted and the draft is retained.
	ErrReconcilePaymentNotSuccessful = errors.New("reconcile: payment not successful")
	// ErrReconcileUnavailable indicates storage or gateway dependencies failed.
	ErrReconcileUnavailable = errors.New("reconcile: unavailable")
)

// ReconciliationServiceDeps wires the dependencies required by the reconciliation service.
type ReconciliationServiceDeps struct {
	Gateway   payments.Provider
	Drafts    pending.Store
	Orders    repositories.OrderRepository
	Pricing   *PricingEngine
	Publisher OrderEventPublisher
	ScanLimit int
	OrderID   func() string
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type reconciliationService struct {
	gateway   payments.Provider
	drafts    pending.Store
	orders    repositories.OrderRepository
	pricing   *PricingEngine
	publisher OrderEventPublisher
	scanLimit int
	newID     func() string
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	locks     referenceLocks
}

// NewReconciliationService constructs a ReconciliationService validating required dependencies.
func NewReconciliationService(deps ReconciliationServiceDeps) (ReconciliationService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("reconciliation service: payment gateway is required")
	}
	if deps.Drafts == nil {
		return nil, errors.New("reconciliation service: draft store is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("reconciliation service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("reconciliation service: pricing engine is required")
	}

	scanLimit := deps.ScanLimit
	if scanLimit <= 0 {
		scanLimit = defaultSessionScanLimit
	}
	newID := deps.OrderID
	if newID == nil {
		newID = func() string {
			return ulid.Make().String()
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

	return &reconciliationService{
		gateway:   deps.Gateway,
		drafts:    deps.Drafts,
		orders:    deps.Orders,
		pricing:   deps.Pricing,
		publisher: deps.Publisher,
		scanLimit: scanLimit,
		newID:     newID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ConfirmPayment resolves the gateway session for a checkout reference,
// verifies it is paid, and persists the reconciled order exactly once.
// Repeat invocations for the same reference return the same order.
func (s *reconciliationService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	referenceID := strings.TrimSpace(cmd.ReferenceID)
	if referenceID == "" {
		return Order{}, fmt.Errorf("%w: reference id is required", ErrReconcileInvalidInput)
	}

	// Confirmations for the same reference serialise so two concurrent retries
	// cannot interleave their read-merge-write cycles.
	unlock := s.locks.acquire(referenceID)
	defer unlock()

	session, err := s.findSession(ctx, referenceID)
	if err != nil {
		return Order{}, err
	}

	detail, err := s.gateway.GetSession(ctx, session.SessionID)
	if err != nil {
		if errors.Is(err, payments.ErrSessionNotFound) {
			return Order{}, fmt.Errorf("%w: %s", ErrReconcileSessionNotFound, session.SessionID)
		}
		s.logger(ctx, "reconcile.session_fetch_failed", map[string]any{
			"referenceId": referenceID,
			"sessionId":   session.SessionID,
			"error":       err.Error(),
		})
		return Order{}, ErrReconcileUnavailable
	}
	if !detail.Paid() {
		return Order{}, fmt.Errorf("%w: status %q", ErrReconcilePaymentNotSuccessful, detail.PaymentStatus)
	}

	now := s.now()
	draft, hasDraft, err := s.readDraft(ctx, referenceID, now)
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.UpsertByReference(ctx, referenceID, func(existing *domain.Order) (domain.Order, error) {
		return s.merge(existing, detail, draft, hasDraft, referenceID, now), nil
	})
	if err != nil {
		s.logger(ctx, "reconcile.persist_failed", map[string]any{
			"referenceId": referenceID,
			"sessionId":   detail.SessionID,
			"error":       err.Error(),
		})
		return Order{}, ErrReconcileUnavailable
	}

	// The draft is only cleared once the durable order exists.
	if err := s.drafts.Delete(ctx, referenceID); err != nil && !errors.Is(err, pending.ErrNotFound) {
		s.logger(ctx, "reconcile.draft_cleanup_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
	}

	s.publishPaid(ctx, order)

	s.logger(ctx, "reconcile.confirmed", map[string]any{
		"referenceId": referenceID,
		"orderId":     order.ID,
		"sessionId":   order.PaymentSessionID,
		"amount":      order.Amount,
	})
	return order, nil
}

// findSession scans the most recent gateway sessions for the reference. The
// listing is paginated by the provider, so a session missing from the visible
// window is indistinguishable from one not created yet.
func (s *reconciliationService) findSession(ctx context.Context, referenceID string) (payments.Session, error) {
	sessions, err := s.gateway.ListSessions(ctx, s.scanLimit, 0)
	if err != nil {
		s.logger(ctx, "reconcile.session_scan_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
		return payments.Session{}, ErrReconcileUnavailable
	}
	for _, session := range sessions {
		if session.ClientReferenceID == referenceID {
			return session, nil
		}
	}
	return payments.Session{}, fmt.Errorf("%w: %s", ErrReconcileSessionNotFound, referenceID)
}

func (s *reconciliationService) readDraft(ctx context.Context, referenceID string, now time.Time) (DraftOrder, bool, error) {
	draft, err := s.drafts.Get(ctx, referenceID, now)
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			return DraftOrder{}, false, nil
		}
		s.logger(ctx, "reconcile.draft_read_failed", map[string]any{
			"referenceId": referenceID,
			"error":       err.Error(),
		})
		return DraftOrder{}, false, ErrReconcileUnavailable
	}
	return draft, true, nil
}

// merge applies gateway truth over the staged draft and any previously
// persisted order. Payment fields always come from the gateway; identity and
// address fields are filled only when empty so earlier writes are never
// clobbered.
func (s *reconciliationService) merge(existing *domain.Order, session payments.Session, draft DraftOrder, hasDraft bool, referenceID string, now time.Time) domain.Order {
	paidAmount := domain.FromBaisa(session.TotalAmount)
	paidAt := now

	var order domain.Order
	if existing != nil {
		order = *existing
	} else {
		order = domain.Order{
			ID:          s.newID(),
			ReferenceID: referenceID,
			CreatedAt:   now,
		}
		if hasDraft && !draft.CreatedAt.IsZero() {
			order.CreatedAt = draft.CreatedAt
		}
	}

	order.Status = domain.OrderStatusCompleted
	order.Amount = paidAmount
	order.PaymentSessionID = session.SessionID
	order.PaidAt = &paidAt
	order.UpdatedAt = now

	order.CustomerName = firstFilled(order.CustomerName, draft.CustomerName, metaString(session.Metadata, "customer_name"))
	order.Phone = firstFilled(order.Phone, draft.Phone, metaString(session.Metadata, "customer_phone"))
	order.Email = strings.ToLower(firstFilled(order.Email, draft.Email, metaString(session.Metadata, "email")))
	order.Country = firstFilled(order.Country, draft.Country, metaString(session.Metadata, "country"))
	order.Wilayat = firstFilled(order.Wilayat, draft.Wilayat, metaString(session.Metadata, "wilayat"))
	order.Description = firstFilled(order.Description, draft.Description, metaString(session.Metadata, "description"))
	if order.GiftCard == nil {
		order.GiftCard = domain.NormalizeGiftCard(draft.GiftCard)
	}

	if hasDraft {
		order.DepositMode = order.DepositMode || draft.DepositMode
		if order.RemainingAmount == 0 {
			order.RemainingAmount = draft.RemainingAmount
		}
		// A staged draft carries the freshest product list for the reference.
		if len(draft.Products) > 0 {
			order.Products = draft.Products
		}
	} else if metaBool(session.Metadata, "deposit_mode") {
		order.DepositMode = true
		if order.RemainingAmount == 0 {
			order.RemainingAmount = metaFloat(session.Metadata, "remaining_amount")
		}
	}

	if order.ShippingFee == 0 {
		order.ShippingFee = s.resolveShippingFee(session, draft, hasDraft, order.Country)
	}

	return order
}

func (s *reconciliationService) resolveShippingFee(session payments.Session, draft DraftOrder, hasDraft bool, country string) float64 {
	if fee := metaFloat(session.Metadata, "shippingFee"); fee > 0 {
		return fee
	}
	if hasDraft && draft.ShippingFee > 0 {
		return draft.ShippingFee
	}
	return s.pricing.ShippingFee(ShippingContext{Country: country})
}

func (s *reconciliationService) publishPaid(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}
	event := OrderPaidEvent{
		OrderID:     order.ID,
		ReferenceID: order.ReferenceID,
		SessionID:   order.PaymentSessionID,
		Email:       order.Email,
		Amount:      order.Amount,
		DepositMode: order.DepositMode,
	}
	if order.PaidAt != nil {
		event.PaidAt = *order.PaidAt
	}
	if err := s.publisher.PublishOrderPaid(ctx, event); err != nil {
		s.logger(ctx, "reconcile.publish_failed", map[string]any{
			"referenceId": order.ReferenceID,
			"orderId":     order.ID,
			"error":       err.Error(),
		})
	}
}

// referenceLocks hands out per-reference mutexes, dropping entries once the
// last holder releases them.
type referenceLocks struct {
	mu    sync.Mutex
	locks map[string]*referenceLock
}

type referenceLock struct {
	mu      sync.Mutex
	holders int
}

func (l *referenceLocks) acquire(referenceID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*referenceLock)
	}
	lock, ok := l.locks[referenceID]
	if !ok {
		lock = &referenceLock{}
		l.locks[referenceID] = lock
	}
	lock.holders++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(l.locks, referenceID)
		}
		l.mu.Unlock()
	}
}

func firstFilled(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if value, ok := metadata[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func metaFloat(metadata map[string]any, key string) float64 {
	if metadata == nil {
		return 0
	}
	switch value := metadata[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func metaBool(metadata map[string]any, key string) bool {
	if metadata == nil {
		return false
	}
	switch value := metadata[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(strings.TrimSpace(value), "true")
	default:
		return false
	}
}
