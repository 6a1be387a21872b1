package live

import (
	"sync"

	"github.com/anonto42/loopline/backend/internal/metrics"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// EventType is the discriminator for live subscription events.
type EventType string

const (
	EventNewNotification EventType = "new-notification"
	EventUnreadCount     EventType = "unread-count-update"
	EventRevoked         EventType = "notification-revoked"
)

// Event is one message pushed to a recipient's live subscription.
// Clients must treat each push as an independent upsert; delivery is
// at-most-once and unordered relative to concurrent events.
type Event struct {
	Type           EventType            `json:"type"`
	Notification   *models.Notification `json:"notification,omitempty"`
	UnreadCount    *int64               `json:"unread_count,omitempty"`
	NotificationID uint                 `json:"notification_id,omitempty"`
}

// NewNotificationEvent wraps a freshly dispatched (or merged) notification.
func NewNotificationEvent(n *models.Notification) Event {
	cp := *n
	return Event{Type: EventNewNotification, Notification: &cp}
}

// UnreadCountEvent carries the recipient's current unread count.
func UnreadCountEvent(count int64) Event {
	return Event{Type: EventUnreadCount, UnreadCount: &count}
}

// RevokedEvent tells subscribers to drop a deleted notification.
func RevokedEvent(id uint) Event {
	return Event{Type: EventRevoked, NotificationID: id}
}

// Subscriber is one live subscription for a recipient. Events arrive on
// the channel returned by Events; Close detaches it from the hub.
type Subscriber struct {
	recipientID uint
	events      chan Event
	hub         *Hub
	once        sync.Once
}

// Events returns the subscription's event stream.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Close detaches the subscriber and closes its event channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
}

// Hub is the per-recipient live subscription registry. A recipient may
// hold several subscriptions at once (multiple tabs/devices).
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[*Subscriber]struct{}
	buffer int
	log    *observability.Logger
}

// NewHub returns a hub whose subscriber channels buffer the given number
// of events before slow subscribers start dropping.
func NewHub(buffer int, log *observability.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uint]map[*Subscriber]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a new subscription for the recipient.
func (h *Hub) Subscribe(recipientID uint) *Subscriber {
	sub := &Subscriber{
		recipientID: recipientID,
		events:      make(chan Event, h.buffer),
		hub:         h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[recipientID] == nil {
		h.subs[recipientID] = make(map[*Subscriber]struct{})
	}
	h.subs[recipientID][sub] = struct{}{}
	return sub
}

// Publish sends the event to every active subscription of the recipient.
// Fire-and-forget: a full subscriber buffer drops the event rather than
// blocking the publisher.
func (h *Hub) Publish(recipientID uint, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.subs[recipientID]
	if len(subs) == 0 {
		return
	}
	metrics.LivePublishesTotal.WithLabelValues(string(ev.Type)).Inc()
	for sub := range subs {
		select {
		case sub.events <- ev:
		default:
			metrics.LiveDropsTotal.Inc()
			h.log.Warn("dropping live event on slow subscriber",
				"recipient_id", recipientID, "event", string(ev.Type))
		}
	}
}

// SubscriberCount reports the number of active subscriptions for the
// recipient. Used by tests and the health surface.
func (h *Hub) SubscriberCount(recipientID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[recipientID])
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.recipientID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.recipientID)
		}
	}
}
