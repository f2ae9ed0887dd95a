package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	reservations    *prometheus.CounterVec
	dispatched      *prometheus.CounterVec
	publishFailures prometheus.Counter
	liveSessions    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazhay",
			Name:      "reservation_outcomes_total",
			Help:      "Reservation workflow outcomes by operation and result kind.",
		}, []string{"operation", "outcome"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazhay",
			Name:      "notifications_dispatched_total",
			Help:      "Notification pushes to the channel layer by target type.",
		}, []string{"target"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bazhay",
			Name:      "notification_publish_failures_total",
			Help:      "Channel layer publish errors.",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bazhay",
			Name:      "live_sessions",
			Help:      "Currently connected live notification sessions.",
		}),
	}

	reg.MustRegister(
		m.reservations,
		m.dispatched,
		m.publishFailures,
		m.liveSessions,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReservationOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Dispatched(target string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(target).Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}
