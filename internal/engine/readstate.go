package engine

import (
	"context"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// CountCache is a short-TTL cache in front of the store's unread count.
// Nil-safe from the tracker's side; misses always fall through.
type CountCache interface {
	Get(ctx context.Context, recipientID uint) (int64, bool)
	Set(ctx context.Context, recipientID uint, count int64, ttl time.Duration)
	Invalidate(ctx context.Context, recipientID uint)
}

const unreadCacheTTL = 30 * time.Second

// ReadStateTracker owns read/unread transitions and the authoritative
// unread count. Bulk operations are single statements: all-or-nothing,
// idempotent, and silently skip ids the recipient does not own.
type ReadStateTracker struct {
	repo  repositories.NotificationRepository
	cache CountCache // nil disables caching
	hub   Publisher  // nil disables live count pushes
	log   *observability.Logger
	now   func() time.Time
}

// NewReadStateTracker wires the tracker. cache and hub may be nil.
func NewReadStateTracker(repo repositories.NotificationRepository, cache CountCache, hub Publisher, log *observability.Logger) *ReadStateTracker {
	return &ReadStateTracker{repo: repo, cache: cache, hub: hub, log: log, now: time.Now}
}

// MarkRead flags the given notifications read and returns how many rows
// actually changed. Already-read or foreign ids are skipped, not errors.
func (t *ReadStateTracker) MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated, err := t.repo.MarkRead(ctx, recipientID, ids, t.now())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		t.refreshCount(ctx, recipientID)
	}
	return updated, nil
}

// MarkUnread is the symmetric operation; it clears read_at.
func (t *ReadStateTracker) MarkUnread(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated, err := t.repo.MarkUnread(ctx, recipientID, ids)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		t.refreshCount(ctx, recipientID)
	}
	return updated, nil
}

// MarkAllRead flags every unread notification of the recipient.
func (t *ReadStateTracker) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	updated, err := t.repo.MarkAllRead(ctx, recipientID, t.now())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		t.refreshCount(ctx, recipientID)
	}
	return updated, nil
}

// UnreadCount returns the authoritative unread count, served from the
// short-TTL cache when fresh.
func (t *ReadStateTracker) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	if t.cache != nil {
		if count, ok := t.cache.Get(ctx, recipientID); ok {
			return count, nil
		}
	}
	count, err := t.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	if t.cache != nil {
		t.cache.Set(ctx, recipientID, count, unreadCacheTTL)
	}
	return count, nil
}

// Invalidate drops the cached count, forcing the next read to hit the
// store. Called when rows change outside the tracker (new rows, sweeps).
func (t *ReadStateTracker) Invalidate(ctx context.Context, recipientID uint) {
	if t.cache != nil {
		t.cache.Invalidate(ctx, recipientID)
	}
}

func (t *ReadStateTracker) refreshCount(ctx context.Context, recipientID uint) {
	t.Invalidate(ctx, recipientID)
	if t.hub == nil {
		return
	}
	count, err := t.UnreadCount(ctx, recipientID)
	if err != nil {
		t.log.Warn("unread count refresh failed", "recipient_id", recipientID, "error", err)
		return
	}
	t.hub.Publish(recipientID, live.UnreadCountEvent(count))
}
