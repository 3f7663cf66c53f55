package payments

import (
	"context"
	"errors"
)

// PaymentStatus enumerates the session states reported by the gateway.
type PaymentStatus string

const (
	// PaymentStatusPaid indicates the customer completed payment.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusUnpaid indicates the session is still awaiting payment.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusCancelled indicates the session was cancelled or expired.
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var (
	// ErrSessionNotCreated is returned when the gateway accepts the request
	// but reports no session identifier.
	ErrSessionNotCreated = errors.New("payments: session not created")
	// ErrSessionNotFound is returned when the gateway has no session for the
	// supplied identifier.
	ErrSessionNotFound = errors.New("payments: session not found")
	// ErrInvalidInput signals a malformed session request.
	ErrInvalidInput = errors.New("payments: invalid input")
)

// SessionProduct describes a single charge line sent to the gateway.
// UnitAmount is in baisa.
type SessionProduct struct {
	Name       string
	Quantity   int
	UnitAmount int64
}

// CreateSessionRequest captures the payload required to open a hosted
// checkout session.
type CreateSessionRequest struct {
	ClientReferenceID string
	Products          []SessionProduct
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]any
}

// Session is the gateway's view of a checkout session. TotalAmount is in
// baisa. Raw preserves the provider payload for diagnostics.
type Session struct {
	SessionID         string
	ClientReferenceID string
	PaymentStatus     PaymentStatus
	TotalAmount       int64
	Mode              string
	Metadata          map[string]any
	Raw               map[string]any
}

// Paid reports whether the gateway considers the session settled.
func (s Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Provider defines the gateway operations the checkout flow depends on.
type Provider interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error)
	ListSessions(ctx context.Context, limit, skip int) ([]Session, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	PaymentLink(sessionID string) string
}
