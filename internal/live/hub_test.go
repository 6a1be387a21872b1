package live

import (
	"testing"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

func TestHubFansOutToAllSubscriptions(t *testing.T) {
	hub := NewHub(4, observability.NewLogger("test"))

	// Same recipient on two devices, a third party uninvolved.
	subA := hub.Subscribe(7)
	subB := hub.Subscribe(7)
	other := hub.Subscribe(8)
	defer subA.Close()
	defer subB.Close()
	defer other.Close()

	n := &models.Notification{ID: 1, RecipientID: 7, Kind: models.KindLike}
	hub.Publish(7, NewNotificationEvent(n))

	for _, sub := range []*Subscriber{subA, subB} {
		select {
		case ev := <-sub.Events():
			if ev.Type != EventNewNotification || ev.Notification.ID != 1 {
				t.Errorf("got event %+v", ev)
			}
		default:
			t.Fatal("subscription did not receive the event")
		}
	}
	select {
	case ev := <-other.Events():
		t.Fatalf("recipient 8 received recipient 7's event: %+v", ev)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1, observability.NewLogger("test"))
	sub := hub.Subscribe(7)
	defer sub.Close()

	hub.Publish(7, UnreadCountEvent(1))
	hub.Publish(7, UnreadCountEvent(2)) // buffer full, dropped

	ev := <-sub.Events()
	if *ev.UnreadCount != 1 {
		t.Errorf("first event count = %d, want 1", *ev.UnreadCount)
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("overflow event was delivered: %+v", ev)
	default:
	}
}

func TestSubscriberCloseDetaches(t *testing.T) {
	hub := NewHub(4, observability.NewLogger("test"))
	sub := hub.Subscribe(7)

	if got := hub.SubscriberCount(7); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}
	sub.Close()
	sub.Close() // safe to call twice
	if got := hub.SubscriberCount(7); got != 0 {
		t.Fatalf("subscriber count after close = %d, want 0", got)
	}

	// Publishing to a closed subscription is a no-op, not a panic.
	hub.Publish(7, UnreadCountEvent(3))

	if _, ok := <-sub.Events(); ok {
		t.Error("closed subscription channel still open")
	}
}

func TestNewNotificationEventCopies(t *testing.T) {
	n := &models.Notification{ID: 1, RecipientID: 7, Message: "before"}
	ev := NewNotificationEvent(n)
	n.Message = "after"
	if ev.Notification.Message != "before" {
		t.Error("event must carry a snapshot, not the live row")
	}
}
