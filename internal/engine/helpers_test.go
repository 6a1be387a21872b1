package engine

import (
	"sync"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// recordingHub captures published live events for assertions.
type recordingHub struct {
	mu     sync.Mutex
	events map[uint][]live.Event
}

func newRecordingHub() *recordingHub {
	return &recordingHub{events: make(map[uint][]live.Event)}
}

func (h *recordingHub) Publish(recipientID uint, ev live.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[recipientID] = append(h.events[recipientID], ev)
}

func (h *recordingHub) published(recipientID uint, t live.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for _, ev := range h.events[recipientID] {
		if ev.Type == t {
			count++
		}
	}
	return count
}

// recordingQueue captures sink enqueues for assertions.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []string // sink names in enqueue order
}

func (q *recordingQueue) Enqueue(sinkName string, _ models.Notification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, sinkName)
	return true
}

func (q *recordingQueue) enqueued(sinkName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, name := range q.jobs {
		if name == sinkName {
			count++
		}
	}
	return count
}

type testFixture struct {
	engine     *Engine
	repo       *repositories.MemoryNotificationRepository
	prefs      *repositories.MemoryPreferenceRepository
	hub        *recordingHub
	queue      *recordingQueue
	clock      *fakeClock
	resolver   *PreferenceResolver
	tracker    *ReadStateTracker
	dispatcher *Dispatcher
}

// fakeClock is a mutable time source shared by every component under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// newTestFixture wires a full engine over in-memory stores, a recording
// hub and queue, and a controllable clock.
func newTestFixture(start time.Time) *testFixture {
	log := observability.NewLogger("test")
	clock := newFakeClock(start)
	repo := repositories.NewMemoryNotificationRepository()
	prefs := repositories.NewMemoryPreferenceRepository()
	hub := newRecordingHub()
	queue := &recordingQueue{}

	resolver := NewPreferenceResolver(prefs, log)
	resolver.now = clock.Now

	counterStore := NewMemoryCounterStore()
	counterStore.now = clock.Now
	quota := NewQuotaGuard(counterStore, DefaultLimits(), log)

	aggregator := NewAggregator(repo, log)
	aggregator.now = clock.Now

	tracker := NewReadStateTracker(repo, nil, hub, log)
	tracker.now = clock.Now

	dispatcher := NewDispatcher(repo, hub, queue, tracker, log)

	eng := New(resolver, quota, aggregator, dispatcher, tracker,
		repo, prefs, hub, log, Config{Workers: 1, QueueBuffer: 8})
	eng.now = clock.Now

	return &testFixture{
		engine:     eng,
		repo:       repo,
		prefs:      prefs,
		hub:        hub,
		queue:      queue,
		clock:      clock,
		resolver:   resolver,
		tracker:    tracker,
		dispatcher: dispatcher,
	}
}

func likeEvent(recipientID, actorID uint, actorName, postID string) Event {
	return Event{
		RecipientID: recipientID,
		Kind:        models.KindLike,
		Actor:       &ActorRef{ID: actorID, DisplayName: actorName},
		Target:      &TargetRef{Type: models.TargetPost, ID: postID},
	}
}
