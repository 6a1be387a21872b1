package engine

import (
	"context"
	"time"

	"github.com/anonto42/loopline/backend/internal/metrics"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

// mergeWindow bounds how old an unread notification may be and still
// absorb a new event for the same (recipient, kind, target) key.
const mergeWindow = time.Hour

// Aggregator folds repeat like/follow events into an existing open
// notification instead of stacking duplicates.
//
// Known race: two concurrent events for the same aggregation key can
// both miss the lookup and each insert a row. Writes are deliberately
// not serialized per key; the duplicate is bounded-probability, logged
// downstream as an expected edge case, and harmless to readers.
type Aggregator struct {
	repo repositories.NotificationRepository
	log  *observability.Logger
	now  func() time.Time
}

// NewAggregator builds an aggregator over the notification store.
func NewAggregator(repo repositories.NotificationRepository, log *observability.Logger) *Aggregator {
	return &Aggregator{repo: repo, log: log, now: time.Now}
}

// Place persists the candidate, merging it into an existing unread
// notification of the same aggregation key when the kind allows it.
// Returns the stored notification and whether a merge happened.
func (a *Aggregator) Place(ctx context.Context, candidate *models.Notification) (*models.Notification, bool, error) {
	if !candidate.Kind.Aggregable() {
		if err := a.repo.Create(ctx, candidate); err != nil {
			return nil, false, err
		}
		metrics.NotificationsCreatedTotal.WithLabelValues(string(candidate.Kind)).Inc()
		return candidate, false, nil
	}

	now := a.now()
	existing, err := a.repo.FindMergeable(ctx, candidate.RecipientID, candidate.Kind,
		candidate.TargetType, candidate.TargetID, now.Add(-mergeWindow))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		candidate.CreatedAt = now
		if err := a.repo.Create(ctx, candidate); err != nil {
			return nil, false, err
		}
		metrics.NotificationsCreatedTotal.WithLabelValues(string(candidate.Kind)).Inc()
		return candidate, false, nil
	}

	a.merge(existing, candidate, now)
	if err := a.repo.Save(ctx, existing); err != nil {
		return nil, false, err
	}
	metrics.NotificationsMergedTotal.WithLabelValues(string(candidate.Kind)).Inc()
	return existing, true, nil
}

// merge appends the candidate's actor (deduplicated by id), recomputes
// the distinct-actor count, re-renders the text, and refreshes CreatedAt
// so the notification resurfaces as new.
func (a *Aggregator) merge(existing, candidate *models.Notification, now time.Time) {
	for _, actor := range candidate.AggregationData.Actors {
		if !existing.AggregationData.HasActor(actor.ID) {
			existing.AggregationData.Actors = append(existing.AggregationData.Actors, actor)
		}
	}
	existing.AggregationData.Count = len(existing.AggregationData.Actors)

	rc := RenderContext{
		Others:      existing.AggregationData.Count - 1,
		TargetLabel: string(existing.TargetType),
	}
	if len(existing.AggregationData.Actors) > 0 {
		rc.ActorName = existing.AggregationData.Actors[0].DisplayName
	}
	existing.Title, existing.Message = Render(existing.Kind, rc)

	// Refreshing CreatedAt keeps the expiry invariant by shifting
	// ExpiresAt forward by the same amount.
	if existing.ExpiresAt != nil {
		shifted := existing.ExpiresAt.Add(now.Sub(existing.CreatedAt))
		existing.ExpiresAt = &shifted
	}
	existing.CreatedAt = now
}
