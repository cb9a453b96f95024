package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slotbook"

// Booking outcome labels.
const (
	ResultCreated     = "created"
	ResultConflict    = "conflict"
	ResultUnavailable = "unavailable"
	ResultInvalid     = "invalid"
	ResultNotFound    = "not_found"
	ResultError       = "error"
	ResultCancelled   = "cancelled"
	ResultNoop        = "noop"
)

// Metrics groups the domain counters of the booking service. A nil *Metrics
// records nothing.
type Metrics struct {
	BookingAttempts  *prometheus.CounterVec
	Cancellations    *prometheus.CounterVec
	SlotQueries      prometheus.Counter
	SlotsReturned    prometheus.Histogram
	RuleReplacements prometheus.Counter
	StoreErrors      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Booking requests by result.",
		}, []string{"result"}),
		Cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_cancellations_total",
			Help:      "Cancellation requests by result.",
		}, []string{"result"}),
		SlotQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Available slot computations.",
		}),
		SlotsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_returned",
			Help:      "Number of available slots returned per query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		RuleReplacements: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_replacements_total",
			Help:      "Availability rule set replacements.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store failures by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) RecordBooking(result string) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCancellation(result string) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSlotQuery(returned int) {
	if m == nil {
		return
	}
	m.SlotQueries.Inc()
	m.SlotsReturned.Observe(float64(returned))
}

func (m *Metrics) RecordRuleReplacement() {
	if m == nil {
		return
	}
	m.RuleReplacements.Inc()
}

func (m *Metrics) RecordStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}
