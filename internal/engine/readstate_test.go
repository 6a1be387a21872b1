package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

func seedNotifications(t *testing.T, repo *repositories.MemoryNotificationRepository, recipientID uint, count int) []uint {
	t.Helper()
	ctx := context.Background()
	ids := make([]uint, 0, count)
	for i := 0; i < count; i++ {
		n := &models.Notification{RecipientID: recipientID, Kind: models.KindComment}
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, n.ID)
	}
	return ids
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryNotificationRepository()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	tracker := NewReadStateTracker(repo, nil, nil, observability.NewLogger("test"))
	tracker.now = clock.Now

	ids := seedNotifications(t, repo, 7, 3)

	updated, err := tracker.MarkRead(ctx, 7, ids[:2])
	if err != nil || updated != 2 {
		t.Fatalf("first mark: updated=%d err=%v, want 2", updated, err)
	}

	// Marking the same rows again changes nothing.
	updated, err = tracker.MarkRead(ctx, 7, ids[:2])
	if err != nil || updated != 0 {
		t.Fatalf("second mark: updated=%d err=%v, want 0", updated, err)
	}

	count, _ := tracker.UnreadCount(ctx, 7)
	if count != 1 {
		t.Errorf("unread count = %d, want 1", count)
	}

	n, _ := repo.GetByID(ctx, ids[0])
	if !n.IsRead || n.ReadAt == nil || !n.ReadAt.Equal(clock.Now()) {
		t.Errorf("read row state = read %v at %v", n.IsRead, n.ReadAt)
	}
}

func TestMarkReadSkipsForeignRows(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryNotificationRepository()
	tracker := NewReadStateTracker(repo, nil, nil, observability.NewLogger("test"))

	mine := seedNotifications(t, repo, 7, 1)
	theirs := seedNotifications(t, repo, 8, 1)

	updated, err := tracker.MarkRead(ctx, 7, append(mine, theirs...))
	if err != nil || updated != 1 {
		t.Fatalf("updated=%d err=%v, want only own row", updated, err)
	}
	n, _ := repo.GetByID(ctx, theirs[0])
	if n.IsRead {
		t.Error("foreign row was marked read")
	}
}

func TestMarkUnreadRestoresState(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryNotificationRepository()
	tracker := NewReadStateTracker(repo, nil, nil, observability.NewLogger("test"))

	ids := seedNotifications(t, repo, 7, 1)
	tracker.MarkRead(ctx, 7, ids)

	updated, err := tracker.MarkUnread(ctx, 7, ids)
	if err != nil || updated != 1 {
		t.Fatalf("updated=%d err=%v", updated, err)
	}
	n, _ := repo.GetByID(ctx, ids[0])
	if n.IsRead || n.ReadAt != nil {
		t.Errorf("unread row still carries read state: read %v at %v", n.IsRead, n.ReadAt)
	}
}

func TestMarkAllReadPublishesCount(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryNotificationRepository()
	hub := newRecordingHub()
	tracker := NewReadStateTracker(repo, nil, hub, observability.NewLogger("test"))

	seedNotifications(t, repo, 7, 5)
	updated, err := tracker.MarkAllRead(ctx, 7)
	if err != nil || updated != 5 {
		t.Fatalf("updated=%d err=%v, want 5", updated, err)
	}
	if hub.published(7, live.EventUnreadCount) != 1 {
		t.Error("expected one unread-count push after mark-all-read")
	}

	// Nothing left unread: no second push.
	tracker.MarkAllRead(ctx, 7)
	if hub.published(7, live.EventUnreadCount) != 1 {
		t.Error("no-op mark-all-read must not push")
	}
}

// staticCache is a CountCache stub with observable hits.
type staticCache struct {
	mu          sync.Mutex
	values      map[uint]int64
	invalidated int
}

func (c *staticCache) Get(_ context.Context, recipientID uint) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[recipientID]
	return v, ok
}

func (c *staticCache) Set(_ context.Context, recipientID uint, count int64, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[recipientID] = count
}

func (c *staticCache) Invalidate(_ context.Context, recipientID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, recipientID)
	c.invalidated++
}

func TestUnreadCountUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryNotificationRepository()
	cache := &staticCache{values: map[uint]int64{7: 42}}
	tracker := NewReadStateTracker(repo, cache, nil, observability.NewLogger("test"))

	count, err := tracker.UnreadCount(ctx, 7)
	if err != nil || count != 42 {
		t.Fatalf("count=%d err=%v, want cached 42", count, err)
	}

	tracker.Invalidate(ctx, 7)
	count, _ = tracker.UnreadCount(ctx, 7)
	if count != 0 {
		t.Errorf("post-invalidation count = %d, want store value 0", count)
	}
	if _, ok := cache.values[7]; !ok {
		t.Error("miss must repopulate the cache")
	}
}
