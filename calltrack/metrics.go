package calltrack

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/callstreams/metric"
)

// Metrics holds Prometheus metrics for the call tracker component
type Metrics struct {
	eventsProcessed  prometheus.Counter
	callsCreated     prometheus.Counter
	callsSynthesized prometheus.Counter
	callsTerminated  prometheus.Counter
	callsRouted      prometheus.Counter
	stateChanges     *prometheus.CounterVec
	activeCalls      prometheus.Gauge
}

// newMetrics creates and registers call tracker metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		eventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "events_processed_total",
			Help:      "Total manager events consumed by the tracker",
		}),
		callsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "calls_created_total",
			Help:      "Calls created from channel-creation events",
		}),
		callsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "calls_synthesized_total",
			Help:      "Calls synthesized for events on unseen channels",
		}),
		callsTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "calls_terminated_total",
			Help:      "Calls removed from the live set after hangup",
		}),
		callsRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "calls_routed_total",
			Help:      "Incoming GSM calls redirected to the configured extension",
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "state_changes_total",
			Help:      "Call state transitions by resulting state",
		}, []string{"state"}),
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callstreams",
			Subsystem: "calltrack",
			Name:      "active_calls",
			Help:      "Calls currently in the live set",
		}),
	}

	const serviceName = "call-tracker"
	registry.RegisterCounter(serviceName, "events_processed", metrics.eventsProcessed)
	registry.RegisterCounter(serviceName, "calls_created", metrics.callsCreated)
	registry.RegisterCounter(serviceName, "calls_synthesized", metrics.callsSynthesized)
	registry.RegisterCounter(serviceName, "calls_terminated", metrics.callsTerminated)
	registry.RegisterCounter(serviceName, "calls_routed", metrics.callsRouted)
	registry.RegisterCounterVec(serviceName, "state_changes", metrics.stateChanges)
	registry.RegisterGauge(serviceName, "active_calls", metrics.activeCalls)

	return metrics
}
