package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckslot",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckslot",
			Name:      "booking_outcomes_total",
			Help:      "Booking submissions by outcome (created, conflict, invalid, error).",
		},
		[]string{"outcome"},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "truckslot",
			Name:      "store_op_duration_seconds",
			Help:      "Latency of booking store operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver", "op"},
	)

	notificationDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truckslot",
			Name:      "notification_deliveries_total",
			Help:      "Notification deliveries by sink and result.",
		},
		[]string{"sink", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingOutcomes, storeOpDuration, notificationDeliveries)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingOutcome counts a finished booking submission.
func IncBookingOutcome(outcome string) {
	bookingOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStoreOp records how long a store call took.
func ObserveStoreOp(driver, op string, started time.Time) {
	storeOpDuration.WithLabelValues(driver, op).Observe(time.Since(started).Seconds())
}

// IncDelivery counts a notification delivery attempt result.
func IncDelivery(sink, result string) {
	notificationDeliveries.WithLabelValues(sink, result).Inc()
}
