package engine

import (
	"context"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// Decision is the resolver's answer for one (recipient, kind) pair.
type Decision struct {
	Enabled      bool
	Deferred     bool
	DeferUntil   time.Time // end of the current quiet-hours window
	EmailEnabled bool
	PushEnabled  bool
}

// PreferenceResolver answers whether a kind is enabled for a recipient
// right now and whether delivery should wait for quiet hours to end.
type PreferenceResolver struct {
	prefs repositories.PreferenceRepository
	log   *observability.Logger
	now   func() time.Time
}

// NewPreferenceResolver builds a resolver over the preference store.
func NewPreferenceResolver(prefs repositories.PreferenceRepository, log *observability.Logger) *PreferenceResolver {
	return &PreferenceResolver{prefs: prefs, log: log, now: time.Now}
}

// Resolve never returns an error: an unresolvable recipient resolves to
// disabled, which downstream treats as suppression rather than failure.
func (r *PreferenceResolver) Resolve(ctx context.Context, recipientID uint, kind models.Kind) Decision {
	prefs, err := r.prefs.GetOrCreate(ctx, recipientID)
	if err != nil {
		r.log.Warn("preference lookup failed, suppressing",
			"recipient_id", recipientID, "kind", string(kind), "error", err)
		return Decision{}
	}

	dec := Decision{
		Enabled:      prefs.KindEnabled(kind),
		EmailEnabled: prefs.EmailEnabled,
		PushEnabled:  prefs.PushEnabled,
	}
	if !dec.Enabled || !prefs.HasQuietHours() {
		return dec
	}

	now := r.now()
	start, okStart := parseClock(*prefs.QuietHoursStart)
	end, okEnd := parseClock(*prefs.QuietHoursEnd)
	if !okStart || !okEnd {
		r.log.Warn("malformed quiet hours, ignoring window",
			"recipient_id", recipientID,
			"start", *prefs.QuietHoursStart, "end", *prefs.QuietHoursEnd)
		return dec
	}

	if inQuietWindow(now, start, end) {
		dec.Deferred = true
		dec.DeferUntil = quietWindowEnd(now, end)
	}
	return dec
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// inQuietWindow handles both the plain window (start < end, same day)
// and the midnight wrap (start > end, "from start today through end
// tomorrow"). start == end is treated as no window.
func inQuietWindow(now time.Time, start, end int) bool {
	minute := now.Hour()*60 + now.Minute()
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// quietWindowEnd returns the next moment the window closes: today's end
// time if it is still ahead, otherwise tomorrow's.
func quietWindowEnd(now time.Time, end int) time.Time {
	endToday := time.Date(now.Year(), now.Month(), now.Day(), end/60, end%60, 0, 0, now.Location())
	if endToday.After(now) {
		return endToday
	}
	return endToday.AddDate(0, 0, 1)
}
