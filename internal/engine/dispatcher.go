package engine

import (
	"context"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/internal/sinks"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// Publisher is the live fan-out contract the dispatcher publishes to.
// *live.Hub satisfies it; tests substitute a recorder.
type Publisher interface {
	Publish(recipientID uint, ev live.Event)
}

// SinkQueue enqueues off-channel delivery jobs. *sinks.Queue satisfies it.
type SinkQueue interface {
	Enqueue(sinkName string, n models.Notification) bool
}

// Dispatcher pushes a persisted notification to the recipient's live
// subscriptions and hands off-channel delivery to the sink queue. Live
// publish is fire-and-forget; a disconnected recipient sees the
// notification on the next poll.
type Dispatcher struct {
	repo    repositories.NotificationRepository
	hub     Publisher
	queue   SinkQueue // nil when no sinks are configured
	tracker *ReadStateTracker
	log     *observability.Logger
}

// NewDispatcher wires the dispatcher. queue may be nil.
func NewDispatcher(repo repositories.NotificationRepository, hub Publisher, queue SinkQueue, tracker *ReadStateTracker, log *observability.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, hub: hub, queue: queue, tracker: tracker, log: log}
}

// Dispatch delivers a freshly placed notification. A merged notification
// is already marked delivered and is simply re-published so it
// resurfaces on the client.
func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification, dec Decision) {
	if !n.IsDelivered {
		claimed, err := d.repo.ClaimDelivery(ctx, n.ID)
		if err != nil {
			d.log.Error("delivery claim failed", "notification_id", n.ID, "error", err)
		} else if claimed {
			n.IsDelivered = true
			n.DeferredUntil = nil
		}
	}
	d.deliver(ctx, n, dec)
}

// Resubmit is the quiet-hours sweep entry point. The conditional
// is_delivered claim makes concurrent sweep workers idempotent: only
// the claim winner publishes; everyone else no-ops.
func (d *Dispatcher) Resubmit(ctx context.Context, n *models.Notification, dec Decision) (bool, error) {
	claimed, err := d.repo.ClaimDelivery(ctx, n.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}
	n.IsDelivered = true
	n.DeferredUntil = nil
	d.deliver(ctx, n, dec)
	return true, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification, dec Decision) {
	d.hub.Publish(n.RecipientID, live.NewNotificationEvent(n))
	if count, err := d.tracker.UnreadCount(ctx, n.RecipientID); err == nil {
		d.hub.Publish(n.RecipientID, live.UnreadCountEvent(count))
	}

	if d.queue == nil {
		return
	}
	// Each sink is independent: one failing or dropping never blocks
	// the other or the persisted record.
	if dec.EmailEnabled {
		d.queue.Enqueue(sinks.EmailSinkName, *n)
	}
	if dec.PushEnabled {
		d.queue.Enqueue(sinks.PushSinkName, *n)
	}
}
