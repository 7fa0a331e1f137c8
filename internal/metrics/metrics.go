package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelbooking"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "method", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation writes by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Availability checks by result (available, taken, error).",
		},
		[]string{"result"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store calls by operation.",
		},
		[]string{"operation"},
	)

	staleClaims = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_night_claims_removed_total",
			Help:      "Night claims removed because their reservation was deleted or missing.",
		},
	)

	reconcileFindings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_findings",
			Help:      "Findings of the last reconciliation pass by kind.",
		},
		[]string{"kind"},
	)

	storedRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_records",
			Help:      "Stored records by entity type.",
		},
		[]string{"entity"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			reservationOps,
			availabilityChecks,
			storeErrors,
			staleClaims,
			reconcileFindings,
			storedRecords,
		)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint, method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// IncReservation counts a reservation write. Outcome is one of ok,
// conflict, invalid, not_found, error.
func IncReservation(operation, outcome string) {
	reservationOps.WithLabelValues(operation, outcome).Inc()
}

func IncAvailability(result string) {
	availabilityChecks.WithLabelValues(result).Inc()
}

func IncStoreError(operation string) {
	storeErrors.WithLabelValues(operation).Inc()
}

func AddStaleClaims(n int) {
	staleClaims.Add(float64(n))
}

func SetReconcileFindings(kind string, n int) {
	reconcileFindings.WithLabelValues(kind).Set(float64(n))
}

func SetStoredRecords(counts map[string]int64) {
	for entity, n := range counts {
		storedRecords.WithLabelValues(entity).Set(float64(n))
	}
}
