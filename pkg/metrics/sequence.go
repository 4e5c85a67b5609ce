package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SequenceMetrics collects counters for chunk reservations made by the
// sequence manager against the storage backend.
//
// All methods are safe to call on a nil receiver.
type SequenceMetrics struct {
	reservations   *prometheus.CounterVec
	reservedValues *prometheus.CounterVec
	reserveErrors  *prometheus.CounterVec
}

// Reservation kinds.
const (
	ReserveRefill   = "refill"
	ReservePrefetch = "prefetch"
)

// NewSequenceMetrics creates a new Prometheus-backed SequenceMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSequenceMetrics() *SequenceMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &SequenceMetrics{
		reservations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbuilder_sequence_reservations_total",
				Help: "Total number of chunk reservations by kind",
			},
			[]string{"kind"}, // "refill", "prefetch"
		),
		reservedValues: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbuilder_sequence_reserved_values_total",
				Help: "Total number of ID values reserved from storage by kind",
			},
			[]string{"kind"},
		),
		reserveErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "idbuilder_sequence_reserve_errors_total",
				Help: "Total number of failed chunk reservations by kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordReservation records a successful chunk reservation of count values.
func (m *SequenceMetrics) RecordReservation(kind string, count int64) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(kind).Inc()
	m.reservedValues.WithLabelValues(kind).Add(float64(count))
}

// RecordReserveError records a failed chunk reservation.
func (m *SequenceMetrics) RecordReserveError(kind string) {
	if m == nil {
		return
	}
	m.reserveErrors.WithLabelValues(kind).Inc()
}

// LeaseMetrics collects counters for snowflake worker-id leases.
//
// All methods are safe to call on a nil receiver.
type LeaseMetrics struct {
	grants        prometheus.Counter
	renewals      prometheus.Counter
	poolExhausted prometheus.Counter
}

// NewLeaseMetrics creates a new Prometheus-backed LeaseMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLeaseMetrics() *LeaseMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &LeaseMetrics{
		grants: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "idbuilder_lease_grants_total",
				Help: "Total number of new worker-id lease grants",
			},
		),
		renewals: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "idbuilder_lease_renewals_total",
				Help: "Total number of worker-id lease renewals",
			},
		),
		poolExhausted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "idbuilder_lease_pool_exhausted_total",
				Help: "Total number of lease requests rejected because the worker-id pool was full",
			},
		),
	}
}

// RecordGrant records a freshly granted worker-id lease.
func (m *LeaseMetrics) RecordGrant() {
	if m == nil {
		return
	}
	m.grants.Inc()
}

// RecordRenewal records a renewed worker-id lease.
func (m *LeaseMetrics) RecordRenewal() {
	if m == nil {
		return
	}
	m.renewals.Inc()
}

// RecordPoolExhausted records a lease request that found no free worker id.
func (m *LeaseMetrics) RecordPoolExhausted() {
	if m == nil {
		return
	}
	m.poolExhausted.Inc()
}
