package engine

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

func newTestResolver(at time.Time) (*PreferenceResolver, *repositories.MemoryPreferenceRepository) {
	prefs := repositories.NewMemoryPreferenceRepository()
	r := NewPreferenceResolver(prefs, observability.NewLogger("test"))
	r.now = func() time.Time { return at }
	return r, prefs
}

func setQuietHours(t *testing.T, prefs *repositories.MemoryPreferenceRepository, recipientID uint, start, end string) {
	t.Helper()
	ctx := context.Background()
	p, err := prefs.GetOrCreate(ctx, recipientID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	p.QuietHoursStart = &start
	p.QuietHoursEnd = &end
	if err := prefs.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestResolveDefaultsEnabled(t *testing.T) {
	r, _ := newTestResolver(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	dec := r.Resolve(context.Background(), 7, models.KindLike)
	if !dec.Enabled || dec.Deferred {
		t.Fatalf("default decision = %+v, want enabled and not deferred", dec)
	}
	if !dec.EmailEnabled || dec.PushEnabled {
		t.Errorf("channel flags = email %v push %v, want defaults true/false", dec.EmailEnabled, dec.PushEnabled)
	}
}

func TestResolveDisabledKind(t *testing.T) {
	r, prefs := newTestResolver(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	p, _ := prefs.GetOrCreate(ctx, 7)
	p.LikeEnabled = false
	prefs.Update(ctx, p)

	if dec := r.Resolve(ctx, 7, models.KindLike); dec.Enabled {
		t.Fatal("disabled kind resolved enabled")
	}
	if dec := r.Resolve(ctx, 7, models.KindFollow); !dec.Enabled {
		t.Fatal("unrelated kind affected by the like switch")
	}
}

func TestResolveQuietHoursMidnightWrap(t *testing.T) {
	cases := []struct {
		name     string
		at       time.Time
		deferred bool
	}{
		{"inside before midnight", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), true},
		{"inside after midnight", time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), true},
		{"outside", time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), false},
		{"window start is inclusive", time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC), true},
		{"window end is exclusive", time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, prefs := newTestResolver(tc.at)
			setQuietHours(t, prefs, 7, "22:00", "06:00")
			dec := r.Resolve(context.Background(), 7, models.KindLike)
			if dec.Deferred != tc.deferred {
				t.Fatalf("at %s: deferred = %v, want %v", tc.at.Format("15:04"), dec.Deferred, tc.deferred)
			}
		})
	}
}

func TestResolveDeferUntil(t *testing.T) {
	// 23:30, window 22:00-06:00: the deferral ends at 06:00 tomorrow.
	at := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	r, prefs := newTestResolver(at)
	setQuietHours(t, prefs, 7, "22:00", "06:00")

	dec := r.Resolve(context.Background(), 7, models.KindLike)
	if !dec.Deferred {
		t.Fatal("expected deferral inside quiet hours")
	}
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if !dec.DeferUntil.Equal(want) {
		t.Errorf("DeferUntil = %s, want %s", dec.DeferUntil, want)
	}

	// 02:00 same night: still today's 06:00.
	r.now = func() time.Time { return time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC) }
	dec = r.Resolve(context.Background(), 7, models.KindLike)
	if !dec.DeferUntil.Equal(want) {
		t.Errorf("after midnight DeferUntil = %s, want %s", dec.DeferUntil, want)
	}
}

func TestResolveEqualQuietBoundsIgnored(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r, prefs := newTestResolver(at)
	setQuietHours(t, prefs, 7, "12:00", "12:00")
	if dec := r.Resolve(context.Background(), 7, models.KindLike); dec.Deferred {
		t.Fatal("start == end must mean no quiet window")
	}
}

func TestResolveMalformedQuietHours(t *testing.T) {
	at := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	r, prefs := newTestResolver(at)
	setQuietHours(t, prefs, 7, "25:99", "06:00")
	dec := r.Resolve(context.Background(), 7, models.KindLike)
	if !dec.Enabled || dec.Deferred {
		t.Fatalf("malformed window must be ignored, got %+v", dec)
	}
}
