package metric

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
}

func gathered(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := make(map[string]bool, len(metricFamilies))
	for _, mf := range metricFamilies {
		found[mf.GetName()] = true
	}
	return found
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ami_frames_received_total",
		Help: "Frames read from the manager socket",
	})

	err := registry.RegisterCounter("ami-client", "ami_frames_received_total", counter)
	require.NoError(t, err)

	counter.Inc()

	assert.True(t, gathered(t, registry)["ami_frames_received_total"])
}

func TestMetricsRegistry_RegisterGauge(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "calltracker_active_calls",
		Help: "Calls currently tracked",
	})

	err := registry.RegisterGauge("calltracker", "calltracker_active_calls", gauge)
	require.NoError(t, err)

	gauge.Set(3)

	assert.True(t, gathered(t, registry)["calltracker_active_calls"])
}

func TestMetricsRegistry_RegisterHistogram(t *testing.T) {
	registry := NewMetricsRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ami_action_latency_seconds",
		Help:    "Round trip time for manager actions",
		Buckets: prometheus.DefBuckets,
	})

	err := registry.RegisterHistogram("ami-client", "ami_action_latency_seconds", histogram)
	require.NoError(t, err)

	histogram.Observe(0.05)

	assert.True(t, gathered(t, registry)["ami_action_latency_seconds"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_counter",
		Help: "First counter",
	})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_counter",
		Help: "First counter", // same help so prometheus sees a true conflict
	})

	err := registry.RegisterCounter("hub", "duplicate_counter", counter1)
	require.NoError(t, err)

	// A different component colliding on the prometheus name still fails
	err = registry.RegisterCounter("natspub", "duplicate_counter", counter2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_DuplicateKeyRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_messages_sent_total",
		Help: "Messages pushed to subscribers",
	})

	require.NoError(t, registry.RegisterCounter("hub", "hub_messages_sent_total", counter))

	err := registry.RegisterCounter("hub", "hub_messages_sent_total", counter)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unregister_counter",
		Help: "A counter to unregister",
	})

	err := registry.RegisterCounter("hub", "unregister_counter", counter)
	require.NoError(t, err)
	assert.True(t, gathered(t, registry)["unregister_counter"])

	assert.True(t, registry.Unregister("hub", "unregister_counter"))
	assert.False(t, gathered(t, registry)["unregister_counter"])

	// Already gone
	assert.False(t, registry.Unregister("hub", "unregister_counter"))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", id),
				Help: "A concurrent counter",
			})

			err := registry.RegisterCounter("hub",
				fmt.Sprintf("concurrent_counter_%d", id), counter)
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	counterCount := 0
	for name := range gathered(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			counterCount++
		}
	}
	assert.Equal(t, numGoroutines, counterCount)
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	registry := NewMetricsRegistry()

	var registrar MetricsRegistrar = registry
	assert.NotNil(t, registrar)

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interface_counter",
		Help: "Counter registered through interface",
	})

	err := registrar.RegisterCounter("hub", "interface_counter", counter)
	require.NoError(t, err)
}

func TestMetricsRegistry_CoreMetricsInitialization(t *testing.T) {
	registry := NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()

	// Vector metrics only appear in Gather() once a label set has a value
	coreMetrics.RecordComponentState("ami-client", 2)
	coreMetrics.RecordHealthStatus("ami-client", true)
	coreMetrics.RecordError("ami-client", "connection")
	coreMetrics.RecordNATSStatus(true)
	coreMetrics.RecordNATSRTT(50 * time.Millisecond)
	coreMetrics.RecordNATSFailures(0)

	found := gathered(t, registry)
	for _, name := range []string{
		"callstreams_component_state",
		"callstreams_health_status",
		"callstreams_errors_total",
		"callstreams_nats_connected",
		"callstreams_nats_rtt_milliseconds",
		"callstreams_nats_failures",
	} {
		assert.True(t, found[name], "core metric %s should be initialized", name)
	}
}

func TestMetricsRegistry_RuntimeCollectors(t *testing.T) {
	registry := NewMetricsRegistry()

	found := gathered(t, registry)
	assert.True(t, found["go_goroutines"], "Go runtime collector should be registered")
}

func TestMetricsRegistry_GetCoreMetrics(t *testing.T) {
	registry := NewMetricsRegistry()

	coreMetrics := registry.CoreMetrics()
	require.NotNil(t, coreMetrics)

	assert.NotNil(t, coreMetrics.ComponentState)
	assert.NotNil(t, coreMetrics.HealthCheckStatus)
	assert.NotNil(t, coreMetrics.ErrorsTotal)
	assert.NotNil(t, coreMetrics.NATSConnected)
	assert.NotNil(t, coreMetrics.NATSRTT)
	assert.NotNil(t, coreMetrics.NATSFailures)
}
