package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autorent"

// Booking outcomes recorded by ObserveBooking.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeBusy     = "busy"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics holds the booking-core collectors.
type Metrics struct {
	bookings    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	lockWait    prometheus.Histogram
	linkFailed  prometheus.Counter
	sweepMoved  *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rental_transitions_total",
			Help:      "Applied rental status and payment transitions.",
		}, []string{"kind", "to"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "car_lock_wait_seconds",
			Help:      "Time spent waiting for a per-car lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		linkFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rental_link_failures_total",
			Help:      "Rentals created but not linked to their user.",
		}),
		sweepMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_sweep_transitions_total",
			Help:      "Rentals advanced by the lifecycle sweeper.",
		}, []string{"to"}),
	}
	reg.MustRegister(m.bookings, m.transitions, m.lockWait, m.linkFailed, m.sweepMoved)
	return m
}

// NewNop returns Metrics registered on a private registry, for tests and
// for running with metrics disabled.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveBooking(outcome string) {
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(kind, to string) {
	m.transitions.WithLabelValues(kind, to).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveLinkFailure() {
	m.linkFailed.Inc()
}

func (m *Metrics) ObserveSweep(to string, n int) {
	m.sweepMoved.WithLabelValues(to).Add(float64(n))
}
