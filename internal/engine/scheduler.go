package engine

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/loopline/backend/internal/live"
	"github.com/anonto42/loopline/backend/internal/repositories"
	"github.com/anonto42/loopline/backend/pkg/observability"
)

const sweepBatchSize = 500

// Scheduler owns the two background loops: the quiet-hours sweep that
// resubmits due deferred notifications to the dispatcher, and the
// retention janitor that removes expired and old read rows.
type Scheduler struct {
	repo       repositories.NotificationRepository
	dispatcher *Dispatcher
	resolver   *PreferenceResolver
	tracker    *ReadStateTracker
	hub        Publisher
	log        *observability.Logger
	now        func() time.Time

	sweepInterval     time.Duration
	retentionInterval time.Duration
	readRetention     time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler wires the background loops. readRetention bounds how long
// read notifications are kept before the janitor removes them.
func NewScheduler(repo repositories.NotificationRepository, dispatcher *Dispatcher, resolver *PreferenceResolver, tracker *ReadStateTracker, hub Publisher, log *observability.Logger, sweepInterval, readRetention time.Duration) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = 2 * time.Minute
	}
	if readRetention <= 0 {
		readRetention = 30 * 24 * time.Hour
	}
	return &Scheduler{
		repo:              repo,
		dispatcher:        dispatcher,
		resolver:          resolver,
		tracker:           tracker,
		hub:               hub,
		log:               log,
		now:               time.Now,
		sweepInterval:     sweepInterval,
		retentionInterval: time.Hour,
		readRetention:     readRetention,
		stop:              make(chan struct{}),
	}
}

// Start launches the sweep and retention loops.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.loop(s.sweepInterval, func(ctx context.Context) {
		if err := s.Sweep(ctx); err != nil {
			s.log.Error("quiet-hours sweep failed", "error", err)
		}
	})
	go s.loop(s.retentionInterval, func(ctx context.Context) {
		if err := s.RunRetention(ctx); err != nil {
			s.log.Error("retention sweep failed", "error", err)
		}
	})
}

// Stop halts both loops and waits for in-flight iterations.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) loop(interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep resubmits deferred notifications whose deferral time has passed.
// Safe to run concurrently from several workers: the dispatcher's
// is_delivered claim makes resubmission of an already-delivered row a
// no-op.
func (s *Scheduler) Sweep(ctx context.Context) error {
	due, err := s.repo.ListDeferredDue(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return err
	}
	for i := range due {
		n := &due[i]
		// Channel flags may have changed since the deferral; resolve
		// them fresh. The deferral itself is not re-evaluated.
		dec := s.resolver.Resolve(ctx, n.RecipientID, n.Kind)
		resubmitted, err := s.dispatcher.Resubmit(ctx, n, dec)
		if err != nil {
			s.log.Error("deferred resubmit failed", "notification_id", n.ID, "error", err)
			continue
		}
		if resubmitted {
			s.log.Info("deferred notification delivered",
				"notification_id", n.ID, "recipient_id", n.RecipientID, "kind", string(n.Kind))
		}
	}
	return nil
}

// RunRetention deletes expired notifications and read notifications past
// the retention window, telling live subscribers to drop any unread rows
// that disappeared.
func (s *Scheduler) RunRetention(ctx context.Context) error {
	expired, revoked, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return err
	}
	for _, ref := range revoked {
		s.hub.Publish(ref.RecipientID, live.RevokedEvent(ref.ID))
		s.tracker.Invalidate(ctx, ref.RecipientID)
	}

	deleted, err := s.repo.DeleteReadBefore(ctx, s.now().Add(-s.readRetention))
	if err != nil {
		return err
	}
	if expired > 0 || deleted > 0 {
		s.log.Info("retention sweep removed notifications",
			"expired", expired, "read_past_retention", deleted)
	}
	return nil
}
