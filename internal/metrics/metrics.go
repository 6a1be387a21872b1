package metrics

import "github.com/prometheus/client_golang/prometheus"

var NotificationsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Total number of notifications persisted as new rows",
	},
	[]string{"kind"},
)

var NotificationsMergedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_merged_total",
		Help: "Total number of events merged into an existing notification",
	},
	[]string{"kind"},
)

var NotificationsSuppressedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_suppressed_total",
		Help: "Total number of events suppressed before persistence",
	},
	[]string{"reason"},
)

var NotificationsDeferredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_deferred_total",
		Help: "Total number of notifications deferred by quiet hours",
	},
)

var LivePublishesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "live_publishes_total",
		Help: "Total number of events published to live subscribers",
	},
	[]string{"event"},
)

var LiveDropsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "live_drops_total",
		Help: "Total number of live events dropped on slow subscribers",
	},
)

var SinkDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sink_deliveries_total",
		Help: "Total number of off-channel sink delivery outcomes",
	},
	[]string{"sink", "status"},
)

var SinkRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sink_retries_total",
		Help: "Total number of off-channel sink delivery retries",
	},
	[]string{"sink"},
)

var SinkDeliveryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sink_delivery_duration_seconds",
		Help:    "Time taken by a single sink delivery attempt",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"sink"},
)

func Init() {
	prometheus.MustRegister(NotificationsCreatedTotal)
	prometheus.MustRegister(NotificationsMergedTotal)
	prometheus.MustRegister(NotificationsSuppressedTotal)
	prometheus.MustRegister(NotificationsDeferredTotal)
	prometheus.MustRegister(LivePublishesTotal)
	prometheus.MustRegister(LiveDropsTotal)
	prometheus.MustRegister(SinkDeliveriesTotal)
	prometheus.MustRegister(SinkRetriesTotal)
	prometheus.MustRegister(SinkDeliveryDuration)
}
