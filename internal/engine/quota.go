package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// Limit caps the notification volume for one kind within a window.
type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits are the per-kind quotas applied when config does not
// override them. Kinds absent from the map are unlimited.
func DefaultLimits() map[models.Kind]Limit {
	return map[models.Kind]Limit{
		models.KindFollow:  {Max: 50, Window: time.Hour},
		models.KindLike:    {Max: 200, Window: time.Hour},
		models.KindComment: {Max: 100, Window: time.Hour},
		models.KindReply:   {Max: 100, Window: time.Hour},
		models.KindMention: {Max: 20, Window: time.Hour},
		models.KindMessage: {Max: 200, Window: time.Hour},
		models.KindShare:   {Max: 100, Window: time.Hour},
	}
}

// CounterStore is the shared keyed counter behind the quota guard. The
// increment must be atomic: cross-worker concurrency is the common case.
type CounterStore interface {
	// Increment adds one to the key's counter, creating it with the
	// given expiry window when absent, and returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// Current returns the key's counter, zero when absent or expired.
	Current(ctx context.Context, key string) (int64, error)
}

// QuotaGuard is advisory load-shedding, not a security control. The
// window is a fixed bucket that resets at its boundary, not a true
// sliding log; slight over-admission under race is acceptable. Counter
// store failures always fail open: this component must never block all
// traffic by breaking.
type QuotaGuard struct {
	store  CounterStore
	limits map[models.Kind]Limit
	log    *observability.Logger
}

// NewQuotaGuard builds a guard over the given counter store and limits.
func NewQuotaGuard(store CounterStore, limits map[models.Kind]Limit, log *observability.Logger) *QuotaGuard {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &QuotaGuard{store: store, limits: limits, log: log}
}

// Allow reports whether the recipient is under quota for the kind.
func (g *QuotaGuard) Allow(ctx context.Context, recipientID uint, kind models.Kind) bool {
	limit, ok := g.limits[kind]
	if !ok {
		return true
	}
	count, err := g.store.Current(ctx, quotaKey(recipientID, kind))
	if err != nil {
		g.log.Warn("quota counter read failed, allowing",
			"recipient_id", recipientID, "kind", string(kind), "error", err)
		return true
	}
	return count < int64(limit.Max)
}

// Record counts one delivered notification against the window.
func (g *QuotaGuard) Record(ctx context.Context, recipientID uint, kind models.Kind) {
	limit, ok := g.limits[kind]
	if !ok {
		return
	}
	if _, err := g.store.Increment(ctx, quotaKey(recipientID, kind), limit.Window); err != nil {
		g.log.Warn("quota counter increment failed",
			"recipient_id", recipientID, "kind", string(kind), "error", err)
	}
}

func quotaKey(recipientID uint, kind models.Kind) string {
	return fmt.Sprintf("notif:quota:%d:%s", recipientID, kind)
}

// MemoryCounterStore is the in-process CounterStore used by tests and
// single-instance deployments without redis.
type MemoryCounterStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	now     func() time.Time
}

type memoryBucket struct {
	count   int64
	expires time.Time
}

// NewMemoryCounterStore returns an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{buckets: make(map[string]*memoryBucket), now: time.Now}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !b.expires.After(now) {
		b = &memoryBucket{expires: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, nil
}

func (s *MemoryCounterStore) Current(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok || !b.expires.After(s.now()) {
		return 0, nil
	}
	return b.count, nil
}
