package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/callstreams/metric"
)

// Metrics holds Prometheus metrics for the websocket hub component
type Metrics struct {
	subscribers       prometheus.Gauge
	subscribesTotal   prometheus.Counter
	evictionsTotal    prometheus.Counter
	messagesDelivered prometheus.Counter
	deliveryFailures  prometheus.Counter
	commandsReceived  *prometheus.CounterVec
	commandFailures   prometheus.Counter
}

// newMetrics creates and registers websocket hub metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "subscribers",
			Help:      "Currently connected subscribers",
		}),
		subscribesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "subscribes_total",
			Help:      "Total subscriber connections accepted",
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "evictions_total",
			Help:      "Subscribers removed after a failed write or ping",
		}),
		messagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "messages_delivered_total",
			Help:      "Messages successfully written to subscribers",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "delivery_failures_total",
			Help:      "Writes to subscribers that failed",
		}),
		commandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "commands_received_total",
			Help:      "Commands received from subscribers by type",
		}, []string{"type"}),
		commandFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "websocket",
			Name:      "command_failures_total",
			Help:      "Commands that produced a failure reply",
		}),
	}

	const serviceName = "websocket-hub"
	registry.RegisterGauge(serviceName, "subscribers", metrics.subscribers)
	registry.RegisterCounter(serviceName, "subscribes", metrics.subscribesTotal)
	registry.RegisterCounter(serviceName, "evictions", metrics.evictionsTotal)
	registry.RegisterCounter(serviceName, "messages_delivered", metrics.messagesDelivered)
	registry.RegisterCounter(serviceName, "delivery_failures", metrics.deliveryFailures)
	registry.RegisterCounterVec(serviceName, "commands_received", metrics.commandsReceived)
	registry.RegisterCounter(serviceName, "command_failures", metrics.commandFailures)

	return metrics
}
