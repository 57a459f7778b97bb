package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains gateway-level metrics shared across components.
// Per-component counters (frames parsed, calls tracked, subscriber
// sessions) live with the component that owns them; this set covers
// lifecycle and cross-cutting status only.
type Metrics struct {
	ComponentState    *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	// Event mirror connection
	NATSConnected prometheus.Gauge
	NATSRTT       prometheus.Gauge
	NATSFailures  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all gateway-level metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "callstreams",
				Subsystem: "component",
				Name:      "state",
				Help:      "Component lifecycle state (0=created, 1=initialized, 2=started, 3=stopped, 4=failed)",
			},
			[]string{"component"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "callstreams",
				Subsystem: "health",
				Name:      "status",
				Help:      "Component health (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "callstreams",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and type",
			},
			[]string{"component", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callstreams",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callstreams",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "callstreams",
				Subsystem: "nats",
				Name:      "failures",
				Help:      "Consecutive NATS failures seen by the circuit breaker",
			},
		),
	}
}

// RecordComponentState updates the lifecycle state gauge for a component
func (c *Metrics) RecordComponentState(name string, state int) {
	c.ComponentState.WithLabelValues(name).Set(float64(state))
}

// RecordHealthStatus updates the health gauge for a component
func (c *Metrics) RecordHealthStatus(name string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(name).Set(value)
}

// RecordError increments the error counter for a component
func (c *Metrics) RecordError(name, errorType string) {
	c.ErrorsTotal.WithLabelValues(name, errorType).Inc()
}

// RecordNATSStatus updates the NATS connection gauge
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates the NATS round-trip time gauge
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSFailures updates the consecutive failure gauge
func (c *Metrics) RecordNATSFailures(n int32) {
	c.NATSFailures.Set(float64(n))
}
