package natspub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/callstreams/metric"
)

// Metrics holds Prometheus metrics for the NATS publisher component
type Metrics struct {
	published       *prometheus.CounterVec
	publishFailures prometheus.Counter
	publishRetries  prometheus.Counter
	bytesPublished  prometheus.Counter
}

// newMetrics creates and registers NATS publisher metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "natspub",
			Name:      "messages_published_total",
			Help:      "Messages published to NATS by notification type",
		}, []string{"type"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "natspub",
			Name:      "publish_failures_total",
			Help:      "Notifications dropped after publish retries were exhausted",
		}),
		publishRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "natspub",
			Name:      "publish_retries_total",
			Help:      "Publish attempts beyond the first",
		}),
		bytesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callstreams",
			Subsystem: "natspub",
			Name:      "bytes_published_total",
			Help:      "Payload bytes published to NATS",
		}),
	}

	const serviceName = "nats-publisher"
	registry.RegisterCounterVec(serviceName, "messages_published", metrics.published)
	registry.RegisterCounter(serviceName, "publish_failures", metrics.publishFailures)
	registry.RegisterCounter(serviceName, "publish_retries", metrics.publishRetries)
	registry.RegisterCounter(serviceName, "bytes_published", metrics.bytesPublished)

	return metrics
}
