package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// windowLimiter counts requests per caller inside a fixed window. It is
// deliberately coarse; checkout only needs to slow down hammering clients,
// not meter them precisely.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu    sync.Mutex
	slots map[string]windowSlot
}

type windowSlot struct {
	count   int
	resetAt time.Time
}

func newWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		slots:  make(map[string]windowSlot),
	}
}

func (l *windowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok || now.After(slot.resetAt) {
		l.slots[key] = windowSlot{count: 1, resetAt: now.Add(l.window)}
		l.evictStaleLocked(now)
		return true
	}

	if slot.count >= l.limit {
		return false
	}
	slot.count++
	l.slots[key] = slot
	return true
}

// evictStaleLocked drops finished windows so the map does not grow with
// one entry per client address forever.
func (l *windowLimiter) evictStaleLocked(now time.Time) {
	for key, slot := range l.slots {
		if now.After(slot.resetAt) {
			delete(l.slots, key)
		}
	}
}
