package engine

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

type schedulerFixture struct {
	scheduler *Scheduler
	repo      *repositories.MemoryNotificationRepository
	prefs     *repositories.MemoryPreferenceRepository
	hub       *recordingHub
	queue     *recordingQueue
	clock     *fakeClock
}

func newSchedulerFixture(start time.Time) *schedulerFixture {
	log := observability.NewLogger("test")
	clock := newFakeClock(start)
	repo := repositories.NewMemoryNotificationRepository()
	prefs := repositories.NewMemoryPreferenceRepository()
	hub := newRecordingHub()
	queue := &recordingQueue{}

	resolver := NewPreferenceResolver(prefs, log)
	resolver.now = clock.Now
	tracker := NewReadStateTracker(repo, nil, hub, log)
	tracker.now = clock.Now
	dispatcher := NewDispatcher(repo, hub, queue, tracker, log)

	s := NewScheduler(repo, dispatcher, resolver, tracker, hub, log, time.Minute, 30*24*time.Hour)
	s.now = clock.Now

	return &schedulerFixture{scheduler: s, repo: repo, prefs: prefs, hub: hub, queue: queue, clock: clock}
}

func deferredRow(repo *repositories.MemoryNotificationRepository, recipientID uint, until time.Time) *models.Notification {
	n := &models.Notification{
		RecipientID:   recipientID,
		Kind:          models.KindLike,
		Title:         "New like",
		Message:       "alice liked your post",
		DeferredUntil: &until,
	}
	repo.Create(context.Background(), n)
	return n
}

func TestSweepDeliversDueDeferred(t *testing.T) {
	start := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(start)
	ctx := context.Background()

	due := deferredRow(f.repo, 7, start.Add(-time.Minute))
	notYet := deferredRow(f.repo, 7, start.Add(time.Hour))

	if err := f.scheduler.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	delivered, _ := f.repo.GetByID(ctx, due.ID)
	if !delivered.IsDelivered || delivered.DeferredUntil != nil {
		t.Errorf("due row state = delivered %v deferred %v", delivered.IsDelivered, delivered.DeferredUntil)
	}
	pending, _ := f.repo.GetByID(ctx, notYet.ID)
	if pending.IsDelivered {
		t.Error("not-yet-due row was delivered")
	}
	if f.hub.published(7, live.EventNewNotification) != 1 {
		t.Errorf("live pushes = %d, want 1", f.hub.published(7, live.EventNewNotification))
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	start := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(start)
	ctx := context.Background()

	deferredRow(f.repo, 7, start.Add(-time.Minute))

	// Two consecutive sweeps: the delivery claim makes the second a no-op.
	if err := f.scheduler.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := f.scheduler.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if got := f.hub.published(7, live.EventNewNotification); got != 1 {
		t.Errorf("live pushes after double sweep = %d, want 1", got)
	}
}

func TestSweepResolvesChannelsFresh(t *testing.T) {
	start := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(start)
	ctx := context.Background()

	// Recipient turned push on after the event was deferred.
	p, _ := f.prefs.GetOrCreate(ctx, 7)
	p.EmailEnabled = false
	p.PushEnabled = true
	f.prefs.Update(ctx, p)

	deferredRow(f.repo, 7, start.Add(-time.Minute))
	if err := f.scheduler.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if got := f.queue.enqueued("push"); got != 1 {
		t.Errorf("push jobs = %d, want 1", got)
	}
	if got := f.queue.enqueued("email"); got != 0 {
		t.Errorf("email jobs = %d, want 0", got)
	}
}

func TestRunRetentionInvalidatesCachedCounts(t *testing.T) {
	start := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	log := observability.NewLogger("test")
	repo := repositories.NewMemoryNotificationRepository()
	prefs := repositories.NewMemoryPreferenceRepository()
	hub := newRecordingHub()
	cache := &staticCache{values: map[uint]int64{7: 3}}

	resolver := NewPreferenceResolver(prefs, log)
	tracker := NewReadStateTracker(repo, cache, hub, log)
	dispatcher := NewDispatcher(repo, hub, nil, tracker, log)
	s := NewScheduler(repo, dispatcher, resolver, tracker, hub, log, time.Minute, 30*24*time.Hour)
	s.now = func() time.Time { return start }

	ctx := context.Background()
	expires := start.Add(-time.Hour)
	repo.Create(ctx, &models.Notification{RecipientID: 7, Kind: models.KindSystem, ExpiresAt: &expires})

	if err := s.RunRetention(ctx); err != nil {
		t.Fatalf("retention: %v", err)
	}
	if f := hub.published(7, live.EventRevoked); f != 1 {
		t.Fatalf("revoked pushes = %d, want 1", f)
	}
	if _, ok := cache.values[7]; ok {
		t.Error("revoked recipient's cached unread count must be invalidated")
	}
}

func TestRunRetentionRemovesExpiredAndOldRead(t *testing.T) {
	start := time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)
	f := newSchedulerFixture(start)
	ctx := context.Background()

	// Unread and expired: removed with a revoked push.
	expires := start.Add(-time.Hour)
	expired := &models.Notification{RecipientID: 7, Kind: models.KindSystem, ExpiresAt: &expires}
	f.repo.Create(ctx, expired)

	// Read long ago: removed silently.
	old := &models.Notification{RecipientID: 7, Kind: models.KindComment}
	f.repo.Create(ctx, old)
	f.repo.MarkRead(ctx, 7, []uint{old.ID}, start.AddDate(0, -2, 0))

	// Read recently: kept.
	recent := &models.Notification{RecipientID: 7, Kind: models.KindComment}
	f.repo.Create(ctx, recent)
	f.repo.MarkRead(ctx, 7, []uint{recent.ID}, start.Add(-time.Hour))

	if err := f.scheduler.RunRetention(ctx); err != nil {
		t.Fatalf("retention: %v", err)
	}

	if n, _ := f.repo.GetByID(ctx, expired.ID); n != nil {
		t.Error("expired row survived retention")
	}
	if n, _ := f.repo.GetByID(ctx, old.ID); n != nil {
		t.Error("old read row survived retention")
	}
	if n, _ := f.repo.GetByID(ctx, recent.ID); n == nil {
		t.Error("recently read row was removed")
	}
	if f.hub.published(7, live.EventRevoked) != 1 {
		t.Error("expected exactly one revoked push for the unread expired row")
	}
}
