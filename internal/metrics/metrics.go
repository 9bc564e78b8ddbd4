package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "reservations_created_total",
			Help:      "Successfully committed reservations.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "reservation_conflicts_total",
			Help:      "Commits rejected because the slot was already taken.",
		},
	)

	capacityRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "capacity_rejections_total",
			Help:      "Commits rejected because the party exceeded table capacity.",
		},
	)

	syncTasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "sync_tasks_processed_total",
			Help:      "Sheet sync tasks by outcome.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			reservationConflicts,
			capacityRejections,
			syncTasksProcessed,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservationCreated() {
	reservationsCreated.Inc()
}

func IncReservationConflict() {
	reservationConflicts.Inc()
}

func IncCapacityRejection() {
	capacityRejections.Inc()
}

func IncSyncTask(status string) {
	syncTasksProcessed.WithLabelValues(status).Inc()
}
