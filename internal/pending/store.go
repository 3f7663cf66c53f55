package pending

import (
	"context"
	"errors"
	"time"

	"github.com/zainahstore/api/internal/domain"
)

// DefaultTTL is the default duration that staged drafts are retained before
// they are considered abandoned.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned when no live draft exists for a reference.
	ErrNotFound = errors.New("pending: draft not found")
	// ErrEmptyReference is returned when a caller supplies a blank reference id.
	ErrEmptyReference = errors.New("pending: reference id is required")
)

// Store stages checkout drafts between session creation and payment
// confirmation. Drafts expire after their TTL so abandoned checkouts never
// accumulate.
type Store interface {
	Put(ctx context.Context, draft domain.DraftOrder, now time.Time, ttl time.Duration) error
	Get(ctx context.Context, referenceID string, now time.Time) (domain.DraftOrder, error)
	Delete(ctx context.Context, referenceID string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}
