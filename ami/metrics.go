package ami

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/callstreams/metric"
)

// Metrics holds Prometheus metrics for the manager client component
type Metrics struct {
	framesReceived     prometheus.Counter
	eventsReceived     prometheus.Counter
	responsesReceived  prometheus.Counter
	unmatchedResponses prometheus.Counter
	unknownFrames      prometheus.Counter
	malformedFrames    prometheus.Counter
	actionsSent        prometheus.Counter
	actionTimeouts     prometheus.Counter
	actionErrors       prometheus.Counter
	reconnects         prometheus.Counter
	connected          prometheus.Gauge
	pendingActions     prometheus.Gauge
	actionLatency      prometheus.Histogram
	lastActivity       prometheus.Gauge
}

// newMetrics creates and registers manager client metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "frames_received_total",
			Help:      "Total protocol frames received from the manager socket",
		}),
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "events_received_total",
			Help:      "Total event frames dispatched to the pipeline",
		}),
		responsesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "responses_received_total",
			Help:      "Total response frames correlated to pending actions",
		}),
		unmatchedResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "unmatched_responses_total",
			Help:      "Responses whose ActionID matched no pending action",
		}),
		unknownFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "unknown_frames_total",
			Help:      "Frames with neither a Response nor an Event field",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "malformed_frames_total",
			Help:      "Frames dropped for exceeding line or field limits",
		}),
		actionsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "actions_sent_total",
			Help:      "Total actions written to the manager socket",
		}),
		actionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "action_timeouts_total",
			Help:      "Actions that timed out waiting for a response",
		}),
		actionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "action_errors_total",
			Help:      "Actions rejected by the manager with an Error response",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "reconnects_total",
			Help:      "Times the manager connection was re-established",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "connected",
			Help:      "Manager connection status (0=disconnected, 1=connected)",
		}),
		pendingActions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "pending_actions",
			Help:      "Actions currently awaiting a response",
		}),
		actionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "action_duration_seconds",
			Help:      "Time from action write to matched response",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callstreams",
			Subsystem: "ami",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last frame received",
		}),
	}

	const serviceName = "ami_client"
	registry.RegisterCounter(serviceName, "frames_received", metrics.framesReceived)
	registry.RegisterCounter(serviceName, "events_received", metrics.eventsReceived)
	registry.RegisterCounter(serviceName, "responses_received", metrics.responsesReceived)
	registry.RegisterCounter(serviceName, "unmatched_responses", metrics.unmatchedResponses)
	registry.RegisterCounter(serviceName, "unknown_frames", metrics.unknownFrames)
	registry.RegisterCounter(serviceName, "malformed_frames", metrics.malformedFrames)
	registry.RegisterCounter(serviceName, "actions_sent", metrics.actionsSent)
	registry.RegisterCounter(serviceName, "action_timeouts", metrics.actionTimeouts)
	registry.RegisterCounter(serviceName, "action_errors", metrics.actionErrors)
	registry.RegisterCounter(serviceName, "reconnects", metrics.reconnects)
	registry.RegisterGauge(serviceName, "connected", metrics.connected)
	registry.RegisterGauge(serviceName, "pending_actions", metrics.pendingActions)
	registry.RegisterHistogram(serviceName, "action_latency", metrics.actionLatency)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}
