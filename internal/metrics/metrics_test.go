package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("/hotels/{hotelID}/reservations", "GET", 200, 15*time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(reservationOps.WithLabelValues("create", "conflict"))
	IncReservation("create", "conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationOps.WithLabelValues("create", "conflict")))

	before = testutil.ToFloat64(availabilityChecks.WithLabelValues("error"))
	IncAvailability("error")
	assert.Equal(t, before+1, testutil.ToFloat64(availabilityChecks.WithLabelValues("error")))

	before = testutil.ToFloat64(staleClaims)
	AddStaleClaims(3)
	assert.Equal(t, before+3, testutil.ToFloat64(staleClaims))

	SetReconcileFindings("missing_guests", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(reconcileFindings.WithLabelValues("missing_guests")))

	SetStoredRecords(map[string]int64{"Room": 12})
	assert.Equal(t, 12.0, testutil.ToFloat64(storedRecords.WithLabelValues("Room")))

	before = testutil.ToFloat64(storeErrors.WithLabelValues("query"))
	IncStoreError("query")
	assert.Equal(t, before+1, testutil.ToFloat64(storeErrors.WithLabelValues("query")))
}
