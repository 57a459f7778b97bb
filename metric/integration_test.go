package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockComponent stands in for a pipeline component that registers its
// own metrics, the way the manager client and the hub do.
type mockComponent struct {
	name    string
	metrics struct {
		eventsHandled prometheus.Counter
		queueDepth    prometheus.Gauge
	}
}

func newMockComponent(name string) *mockComponent {
	return &mockComponent{name: name}
}

func (m *mockComponent) RegisterMetrics(registrar MetricsRegistrar) error {
	m.metrics.eventsHandled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "callstreams",
		Subsystem: "mock",
		Name:      "events_handled_total",
		Help:      "Manager events handled",
	})
	if err := registrar.RegisterCounter(m.name, "events_handled_total", m.metrics.eventsHandled); err != nil {
		return err
	}

	m.metrics.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "callstreams",
		Subsystem: "mock",
		Name:      "queue_depth",
		Help:      "Current depth of the event queue",
	})
	return registrar.RegisterGauge(m.name, "queue_depth", m.metrics.queueDepth)
}

func (m *mockComponent) HandleEvents(events int, queueDepth int) {
	m.metrics.eventsHandled.Add(float64(events))
	m.metrics.queueDepth.Set(float64(queueDepth))
}

func TestMetricsIntegration_ComponentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()
	comp := newMockComponent("ami-client")

	require.NoError(t, comp.RegisterMetrics(registry))
	comp.HandleEvents(10, 5)

	found := gathered(t, registry)
	assert.True(t, found["callstreams_mock_events_handled_total"])
	assert.True(t, found["callstreams_mock_queue_depth"])
}

func TestMetricsIntegration_DuplicateComponentRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	// Registering the same component twice must fail at the registry level
	first := newMockComponent("ami-client")
	second := newMockComponent("ami-client")

	require.NoError(t, first.RegisterMetrics(registry))

	err := second.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMetricsIntegration_PrometheusNameConflict(t *testing.T) {
	registry := NewMetricsRegistry()

	// Different component names, identical prometheus metric names: the
	// conflict surfaces from the underlying registry
	first := newMockComponent("calltracker")
	second := newMockComponent("hub")

	require.NoError(t, first.RegisterMetrics(registry))

	err := second.RegisterMetrics(registry)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsIntegration_CoreAndComponentMetricsCoexist(t *testing.T) {
	registry := NewMetricsRegistry()
	coreMetrics := registry.CoreMetrics()

	comp := newMockComponent("calltracker")
	require.NoError(t, comp.RegisterMetrics(registry))

	coreMetrics.RecordComponentState("calltracker", 2)
	coreMetrics.RecordHealthStatus("calltracker", true)
	comp.HandleEvents(5, 3)

	found := gathered(t, registry)
	assert.True(t, found["callstreams_component_state"])
	assert.True(t, found["callstreams_health_status"])
	assert.True(t, found["callstreams_mock_events_handled_total"])
	assert.True(t, found["callstreams_mock_queue_depth"])
}

func TestMetricsIntegration_Unregistration(t *testing.T) {
	registry := NewMetricsRegistry()

	comp := newMockComponent("natspub")
	require.NoError(t, comp.RegisterMetrics(registry))
	comp.HandleEvents(1, 1)

	assert.True(t, gathered(t, registry)["callstreams_mock_events_handled_total"])

	assert.True(t, registry.Unregister("natspub", "events_handled_total"))

	found := gathered(t, registry)
	assert.False(t, found["callstreams_mock_events_handled_total"])
	assert.True(t, found["callstreams_mock_queue_depth"], "other component metrics should remain")
}
