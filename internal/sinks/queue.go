package sinks

import (
	"context"
	"math"
	"time"

	"github.com/anonto42/loopline/backend/internal/metrics"
	"github.com/anonto42/loopline/backend/internal/models"
	"github.com/anonto42/loopline/backend/pkg/observability"
	"github.com/google/uuid"
)

// Job is one off-channel delivery unit. The notification is carried by
// value so retries never observe later mutations of the stored row.
type Job struct {
	ID           string
	SinkName     string
	Notification models.Notification
}

// Queue delivers sink jobs on its own workers with bounded retries and a
// hard per-attempt timeout. A job that exhausts its retries is logged and
// dropped; the persisted notification is untouched either way.
type Queue struct {
	jobs           chan Job
	sinks          map[string]Sink
	workers        int
	maxAttempts    int
	attemptTimeout time.Duration
	backoff        func(attempt int) time.Duration
	log            *observability.Logger
	done           chan struct{}
}

// NewQueue builds a queue with the given worker count and buffer size.
// Call Start before enqueueing and Close on shutdown.
func NewQueue(workers, buffer int, log *observability.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		jobs:           make(chan Job, buffer),
		sinks:          make(map[string]Sink),
		workers:        workers,
		maxAttempts:    3,
		attemptTimeout: 10 * time.Second,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
		log:  log,
		done: make(chan struct{}),
	}
}

// Register adds a sink. Not safe to call after Start.
func (q *Queue) Register(s Sink) {
	q.sinks[s.Name()] = s
}

// Start launches the delivery workers.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		go q.worker()
	}
}

// Enqueue submits a delivery job for the named sink. Returns false when
// the sink is unknown or the queue is full; the caller must not treat
// that as an error beyond logging.
func (q *Queue) Enqueue(sinkName string, n models.Notification) bool {
	if _, ok := q.sinks[sinkName]; !ok {
		return false
	}
	job := Job{ID: uuid.New().String(), SinkName: sinkName, Notification: n}
	select {
	case q.jobs <- job:
		return true
	default:
		q.log.Warn("sink queue full, dropping job", "sink", sinkName, "notification_id", n.ID)
		metrics.SinkDeliveriesTotal.WithLabelValues(sinkName, "dropped").Inc()
		return false
	}
}

// Close stops accepting jobs and waits for in-flight deliveries.
func (q *Queue) Close() {
	close(q.jobs)
	for i := 0; i < q.workers; i++ {
		<-q.done
	}
}

func (q *Queue) worker() {
	defer func() { q.done <- struct{}{} }()
	for job := range q.jobs {
		q.process(job)
	}
}

func (q *Queue) process(job Job) {
	sink := q.sinks[job.SinkName]
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), q.attemptTimeout)
		err := sink.Deliver(ctx, &job.Notification)
		cancel()
		metrics.SinkDeliveryDuration.WithLabelValues(job.SinkName).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.SinkDeliveriesTotal.WithLabelValues(job.SinkName, "sent").Inc()
			return
		}

		q.log.Warn("sink delivery failed",
			"sink", job.SinkName, "job_id", job.ID,
			"notification_id", job.Notification.ID,
			"attempt", attempt, "error", err)

		if attempt == q.maxAttempts {
			break
		}
		metrics.SinkRetriesTotal.WithLabelValues(job.SinkName).Inc()
		time.Sleep(q.backoff(attempt))
	}

	// Retries exhausted. The notification stays persisted and readable
	// in-app regardless of off-channel failure.
	metrics.SinkDeliveriesTotal.WithLabelValues(job.SinkName, "failed").Inc()
	q.log.Error("sink delivery abandoned after retries",
		"sink", job.SinkName, "job_id", job.ID, "notification_id", job.Notification.ID)
}
