package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes booking outcome counters and the slot computation latency.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	cancelsTotal   *prometheus.CounterVec
	slotsServed    *prometheus.HistogramVec
	slotLatency    *prometheus.HistogramVec
	consumedEvents *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendly",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking and reschedule attempts by outcome",
		}, []string{"operation", "outcome"}),
		cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendly",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Appointment cancellations by outcome",
		}, []string{"outcome"}),
		slotsServed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agendly",
			Subsystem: "availability",
			Name:      "slots_returned",
			Help:      "Number of slots returned per availability query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"kind"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agendly",
			Subsystem: "availability",
			Name:      "query_duration_seconds",
			Help:      "Latency of availability queries including storage reads",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		consumedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendly",
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Consumed Kafka events by type and result",
		}, []string{"event_type", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancelsTotal, m.slotsServed, m.slotLatency, m.consumedEvents)
	return m
}

// ObserveBooking records an attempt; operation is "book" or "reschedule".
func (m *BookingMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveCancel(outcome string) {
	if m == nil {
		return
	}
	m.cancelsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAvailability records a "dates" or "slots" query.
func (m *BookingMetrics) ObserveAvailability(kind string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.slotsServed.WithLabelValues(kind).Observe(float64(results))
	m.slotLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveConsumed(eventType, result string) {
	if m == nil {
		return
	}
	m.consumedEvents.WithLabelValues(eventType, result).Inc()
}
