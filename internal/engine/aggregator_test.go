package engine

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

func newTestAggregator(clock *fakeClock) (*Aggregator, *repositories.MemoryNotificationRepository) {
	repo := repositories.NewMemoryNotificationRepository()
	agg := NewAggregator(repo, observability.NewLogger("test"))
	agg.now = clock.Now
	return agg, repo
}

func likeCandidate(recipientID, actorID uint, actorName, postID string, at time.Time) *models.Notification {
	n := &models.Notification{
		RecipientID: recipientID,
		Kind:        models.KindLike,
		TargetType:  models.TargetPost,
		TargetID:    postID,
		CreatedAt:   at,
		AggregationData: models.AggregationData{
			Actors: []models.AggregatedActor{{ID: actorID, DisplayName: actorName}},
			Count:  1,
		},
	}
	n.Title, n.Message = Render(models.KindLike, RenderContext{ActorName: actorName, TargetLabel: "post"})
	return n
}

func TestPlaceMergesSameTarget(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	agg, repo := newTestAggregator(clock)

	first, merged, err := agg.Place(ctx, likeCandidate(7, 1, "alice", "post-9", clock.Now()))
	if err != nil || merged {
		t.Fatalf("first placement: merged=%v err=%v", merged, err)
	}

	clock.Advance(10 * time.Minute)
	second, merged, err := agg.Place(ctx, likeCandidate(7, 2, "bob", "post-9", clock.Now()))
	if err != nil {
		t.Fatalf("second placement: %v", err)
	}
	if !merged {
		t.Fatal("second like on the same post must merge")
	}
	if second.ID != first.ID {
		t.Errorf("merge created a new row: %d vs %d", second.ID, first.ID)
	}
	if second.AggregationData.Count != 2 {
		t.Errorf("actor count = %d, want 2", second.AggregationData.Count)
	}
	if second.Message != "alice and 1 other liked your post" {
		t.Errorf("merged message = %q", second.Message)
	}
	if !second.CreatedAt.Equal(clock.Now()) {
		t.Errorf("merge must refresh CreatedAt, got %s", second.CreatedAt)
	}

	stored, _ := repo.GetByID(ctx, first.ID)
	if stored.AggregationData.Count != 2 {
		t.Errorf("stored count = %d, want 2", stored.AggregationData.Count)
	}
}

func TestPlaceDeduplicatesRepeatActor(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	agg, _ := newTestAggregator(clock)

	agg.Place(ctx, likeCandidate(7, 1, "alice", "post-9", clock.Now()))
	clock.Advance(time.Minute)
	n, merged, err := agg.Place(ctx, likeCandidate(7, 1, "alice", "post-9", clock.Now()))
	if err != nil || !merged {
		t.Fatalf("repeat actor: merged=%v err=%v", merged, err)
	}
	if n.AggregationData.Count != 1 {
		t.Errorf("repeat actor inflated count to %d", n.AggregationData.Count)
	}
	if n.Message != "alice liked your post" {
		t.Errorf("message = %q, want single-actor phrasing", n.Message)
	}
}

func TestPlaceDoesNotMergeAcrossBoundaries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	agg, repo := newTestAggregator(clock)

	agg.Place(ctx, likeCandidate(7, 1, "alice", "post-9", clock.Now()))

	// Different target: new row.
	if _, merged, _ := agg.Place(ctx, likeCandidate(7, 2, "bob", "post-10", clock.Now())); merged {
		t.Fatal("must not merge across targets")
	}
	// Different recipient: new row.
	if _, merged, _ := agg.Place(ctx, likeCandidate(8, 2, "bob", "post-9", clock.Now())); merged {
		t.Fatal("must not merge across recipients")
	}
	// Non-aggregable kind: always a new row.
	comment := &models.Notification{
		RecipientID: 7, Kind: models.KindComment,
		TargetType: models.TargetPost, TargetID: "post-9",
		CreatedAt: clock.Now(),
	}
	if _, merged, _ := agg.Place(ctx, comment); merged {
		t.Fatal("comments must never merge")
	}

	all, total, _ := repo.List(ctx, 7, repositories.ListFilter{Page: 1, Limit: 10})
	if total != 3 || len(all) != 3 {
		t.Errorf("recipient 7 rows = %d, want 3", total)
	}
}

func TestPlaceDoesNotMergeReadOrStale(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	agg, repo := newTestAggregator(clock)

	first, _, _ := agg.Place(ctx, likeCandidate(7, 1, "alice", "post-9", clock.Now()))
	repo.MarkRead(ctx, 7, []uint{first.ID}, clock.Now())

	if _, merged, _ := agg.Place(ctx, likeCandidate(7, 2, "bob", "post-9", clock.Now())); merged {
		t.Fatal("read notifications must not absorb new events")
	}

	// Stale open notification outside the merge window.
	second, _, _ := agg.Place(ctx, likeCandidate(7, 3, "carol", "post-11", clock.Now()))
	clock.Advance(2 * time.Hour)
	n, merged, _ := agg.Place(ctx, likeCandidate(7, 4, "dave", "post-11", clock.Now()))
	if merged {
		t.Fatal("events outside the merge window must not merge")
	}
	if n.ID == second.ID {
		t.Fatal("stale notification was reused")
	}
}

func TestMergeShiftsExpiry(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	agg, _ := newTestAggregator(clock)

	candidate := likeCandidate(7, 1, "alice", "post-9", clock.Now())
	expires := start.Add(30 * time.Minute)
	candidate.ExpiresAt = &expires
	agg.Place(ctx, candidate)

	clock.Advance(10 * time.Minute)
	n, merged, _ := agg.Place(ctx, likeCandidate(7, 2, "bob", "post-9", clock.Now()))
	if !merged {
		t.Fatal("expected merge")
	}
	if n.ExpiresAt == nil || !n.ExpiresAt.After(n.CreatedAt) {
		t.Fatalf("expiry invariant broken: created %s expires %v", n.CreatedAt, n.ExpiresAt)
	}
	want := clock.Now().Add(30 * time.Minute)
	if !n.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %s, want shifted to %s", n.ExpiresAt, want)
	}
}
