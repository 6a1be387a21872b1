package engine

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/metrics"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

const notifyTimeout = 15 * time.Second

// Engine is the single entry point business modules and the API layer
// talk to. It owns the intake pipeline (preferences → quota →
// aggregation → store → dispatch) and fronts the read-state tracker.
type Engine struct {
	resolver   *PreferenceResolver
	quota      *QuotaGuard
	aggregator *Aggregator
	dispatcher *Dispatcher
	tracker    *ReadStateTracker
	repo       repositories.NotificationRepository
	prefs      repositories.PreferenceRepository
	hub        Publisher
	log        *observability.Logger
	now        func() time.Time

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Config carries the engine's tunables.
type Config struct {
	Workers     int
	QueueBuffer int
}

// New assembles the engine and starts its intake worker pool.
func New(resolver *PreferenceResolver, quota *QuotaGuard, aggregator *Aggregator, dispatcher *Dispatcher, tracker *ReadStateTracker, repo repositories.NotificationRepository, prefs repositories.PreferenceRepository, hub Publisher, log *observability.Logger, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 1024
	}
	e := &Engine{
		resolver:   resolver,
		quota:      quota,
		aggregator: aggregator,
		dispatcher: dispatcher,
		tracker:    tracker,
		repo:       repo,
		prefs:      prefs,
		hub:        hub,
		log:        log,
		now:        time.Now,
		events:     make(chan Event, cfg.QueueBuffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Close drains the intake pool. Safe to call more than once.
func (e *Engine) Close() {
	e.once.Do(func() {
		close(e.events)
		e.wg.Wait()
	})
}

// Notify runs the full pipeline for one event. It returns:
//   - (nil, *ValidationError) for a malformed event — the only error a
//     business caller ever sees;
//   - (nil, nil) when the event was deliberately suppressed
//     (disabled kind, quota exceeded) or a downstream failure was
//     swallowed — a failure to notify never fails the business action;
//   - (n, nil) with the persisted (new or merged) notification.
func (e *Engine) Notify(ctx context.Context, ev Event) (*models.Notification, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	dec := e.resolver.Resolve(ctx, ev.RecipientID, ev.Kind)
	if !dec.Enabled {
		metrics.NotificationsSuppressedTotal.WithLabelValues("preference").Inc()
		return nil, nil
	}
	if !e.quota.Allow(ctx, ev.RecipientID, ev.Kind) {
		metrics.NotificationsSuppressedTotal.WithLabelValues("quota").Inc()
		e.log.Info("notification suppressed by quota",
			"recipient_id", ev.RecipientID, "kind", string(ev.Kind))
		return nil, nil
	}

	candidate := e.buildNotification(ev, dec)
	placed, merged, err := e.aggregator.Place(ctx, candidate)
	if err != nil {
		e.log.Error("notification persistence failed",
			"recipient_id", ev.RecipientID, "kind", string(ev.Kind), "error", err)
		return nil, nil
	}
	e.quota.Record(ctx, ev.RecipientID, ev.Kind)
	e.tracker.Invalidate(ctx, ev.RecipientID)
	if merged {
		e.log.Info("event merged into open notification",
			"notification_id", placed.ID, "kind", string(ev.Kind),
			"actor_count", placed.AggregationData.Count)
	}

	if dec.Deferred {
		// Persisted and readable via list right away; live push and
		// sinks wait for the sweep after quiet hours end. A merge into an
		// already-delivered row is pulled back into the deferred state so
		// the sweep republishes the update instead of dropping it.
		if merged && placed.IsDelivered {
			until := dec.DeferUntil
			if err := e.repo.Defer(ctx, placed.ID, until); err != nil {
				e.log.Error("re-deferral of merged notification failed",
					"notification_id", placed.ID, "error", err)
			} else {
				placed.IsDelivered = false
				placed.DeferredUntil = &until
			}
		}
		metrics.NotificationsDeferredTotal.Inc()
		return placed, nil
	}

	e.dispatcher.Dispatch(ctx, placed, dec)
	return placed, nil
}

// Submit enqueues the event onto the intake pool so the caller is never
// slowed by notification work. The event must already be valid; use
// Notify when validation feedback is needed.
func (e *Engine) Submit(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.log.Warn("intake queue full, dropping event",
			"recipient_id", ev.RecipientID, "kind", string(ev.Kind))
		metrics.NotificationsSuppressedTotal.WithLabelValues("backpressure").Inc()
		return false
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for ev := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if _, err := e.Notify(ctx, ev); err != nil {
			e.log.Warn("async event rejected", "error", err)
		}
		cancel()
	}
}

func (e *Engine) buildNotification(ev Event, dec Decision) *models.Notification {
	n := &models.Notification{
		RecipientID: ev.RecipientID,
		Kind:        ev.Kind,
		CreatedAt:   e.now(),
	}
	rc := RenderContext{Payload: ev.Payload}
	if ev.Actor != nil {
		actorID := ev.Actor.ID
		n.ActorID = &actorID
		rc.ActorName = ev.Actor.DisplayName
	}
	if ev.Target != nil {
		n.TargetType = ev.Target.Type
		n.TargetID = ev.Target.ID
		rc.TargetLabel = string(ev.Target.Type)
	}
	if ev.Kind.Aggregable() && ev.Actor != nil {
		n.AggregationData = models.AggregationData{
			Actors: []models.AggregatedActor{{ID: ev.Actor.ID, DisplayName: ev.Actor.DisplayName}},
			Count:  1,
		}
	}
	n.Title, n.Message = Render(ev.Kind, rc)

	if dec.Deferred {
		until := dec.DeferUntil
		n.DeferredUntil = &until
	}
	if ttl := ev.Payload["expires_in"]; ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			expires := n.CreatedAt.Add(d)
			n.ExpiresAt = &expires
		}
	}
	return n
}

// --- read API, consumed by the REST layer ---

// List pages through the recipient's notifications.
func (e *Engine) List(ctx context.Context, recipientID uint, f repositories.ListFilter) ([]models.Notification, int64, error) {
	return e.repo.List(ctx, recipientID, f)
}

// GetGrouped buckets the recipient's notifications by age.
func (e *Engine) GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, err error) {
	return e.repo.GetGrouped(ctx, recipientID)
}

// MarkRead delegates to the read-state tracker.
func (e *Engine) MarkRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	return e.tracker.MarkRead(ctx, recipientID, ids)
}

// MarkUnread delegates to the read-state tracker.
func (e *Engine) MarkUnread(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	return e.tracker.MarkUnread(ctx, recipientID, ids)
}

// MarkAllRead delegates to the read-state tracker.
func (e *Engine) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	return e.tracker.MarkAllRead(ctx, recipientID)
}

// UnreadCount delegates to the read-state tracker.
func (e *Engine) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return e.tracker.UnreadCount(ctx, recipientID)
}

// GetPreferences returns (lazily creating) the recipient's preferences.
func (e *Engine) GetPreferences(ctx context.Context, recipientID uint) (*models.NotificationPreferences, error) {
	return e.prefs.GetOrCreate(ctx, recipientID)
}

// UpdatePreferences persists an updated preference row.
func (e *Engine) UpdatePreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	return e.prefs.Update(ctx, prefs)
}

// --- admin/ops surface ---

// CleanupExpired removes notifications past their expiry and tells live
// subscribers to drop any unread ones.
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, revoked, err := e.repo.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	for _, ref := range revoked {
		e.hub.Publish(ref.RecipientID, live.RevokedEvent(ref.ID))
		e.tracker.Invalidate(ctx, ref.RecipientID)
	}
	return deleted, nil
}

// CleanupReadOlderThan removes read notifications whose read time is
// older than the given number of days.
func (e *Engine) CleanupReadOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := e.now().AddDate(0, 0, -days)
	return e.repo.DeleteReadBefore(ctx, cutoff)
}

// Stats serves the admin health numbers straight from the store.
func (e *Engine) Stats(ctx context.Context) (repositories.NotificationStats, error) {
	return e.repo.Stats(ctx, e.now())
}
