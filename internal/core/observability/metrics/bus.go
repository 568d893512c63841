package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/glowline/internal/core/events/bus"
)

// Bus observes event deliveries on a bus.EventBus.
type Bus struct {
	published *prometheus.CounterVec
	errors    *prometheus.CounterVec
	delivery  *prometheus.HistogramVec
}

var _ bus.Observer = (*Bus)(nil)

// NewBus creates and registers the event bus collectors on reg.
func NewBus(reg prometheus.Registerer) *Bus {
	m := &Bus{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published on the bus, by type.",
		}, []string{"type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_errors_total",
			Help:      "Deliveries where at least one handler failed, by type.",
		}, []string{"type"}),
		delivery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent running every handler of one event.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.errors, m.delivery)
	}
	return m
}

func (m *Bus) OnPublish(eventType string, _ bus.Event) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(eventType).Inc()
}

func (m *Bus) OnDelivered(eventType string, _ int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.errors.WithLabelValues(eventType).Inc()
	}
	m.delivery.WithLabelValues(eventType).Observe(elapsed.Seconds())
}
