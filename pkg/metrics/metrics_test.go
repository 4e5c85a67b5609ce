package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledConstructorsReturnNil(t *testing.T) {
	resetForTesting()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewAPIMetrics())
	assert.Nil(t, NewSequenceMetrics())
	assert.Nil(t, NewLeaseMetrics())
}

func TestNilReceiversAreSafe(t *testing.T) {
	resetForTesting()

	var api *APIMetrics
	api.RecordRequest("/v1/id/{key}", 0, time.Millisecond)
	api.RecordRequestStart()
	api.RecordRequestEnd()

	var seq *SequenceMetrics
	seq.RecordReservation(ReserveRefill, 1000)
	seq.RecordReserveError(ReservePrefetch)

	var lease *LeaseMetrics
	lease.RecordGrant()
	lease.RecordRenewal()
	lease.RecordPoolExhausted()
}

func TestInitRegistryEnables(t *testing.T) {
	resetForTesting()

	InitRegistry()
	require.True(t, IsEnabled())
	require.NotNil(t, GetRegistry())

	// Second call is a no-op and keeps the same registry.
	reg := GetRegistry()
	InitRegistry()
	assert.Same(t, reg, GetRegistry())
}

func TestAPIMetricsRecord(t *testing.T) {
	resetForTesting()
	InitRegistry()

	m := NewAPIMetrics()
	require.NotNil(t, m)

	m.RecordRequestStart()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight))

	m.RecordRequest("/v1/id/{key}", 0, 5*time.Millisecond)
	m.RecordRequest("/v1/id/{key}", 3001, time.Millisecond)
	m.RecordRequestEnd()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/v1/id/{key}", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/v1/id/{key}", "3001")))
}

func TestSequenceMetricsRecord(t *testing.T) {
	resetForTesting()
	InitRegistry()

	m := NewSequenceMetrics()
	require.NotNil(t, m)

	m.RecordReservation(ReserveRefill, 1000)
	m.RecordReservation(ReservePrefetch, 1000)
	m.RecordReserveError(ReserveRefill)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reservations.WithLabelValues(ReserveRefill)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.reservedValues.WithLabelValues(ReservePrefetch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reserveErrors.WithLabelValues(ReserveRefill)))
}

func TestHandlerServesRegistry(t *testing.T) {
	resetForTesting()
	InitRegistry()

	m := NewLeaseMetrics()
	require.NotNil(t, m)
	m.RecordGrant()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idbuilder_lease_grants_total 1")
}

func TestHandlerDisabledReturnsNotFound(t *testing.T) {
	resetForTesting()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
