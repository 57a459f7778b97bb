package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitor(t *testing.T) {
	m := NewMonitor()
	require.NotNil(t, m)
	assert.Zero(t, m.Count())
	assert.Empty(t, m.GetAll())
}

func TestMonitor_Update(t *testing.T) {
	m := NewMonitor()
	m.Update("ami-client", NewHealthy("ami-client", "connected to PBX"))

	status, ok := m.Get("ami-client")
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.Equal(t, "connected to PBX", status.Message)
}

func TestMonitor_UpdateOverridesComponentName(t *testing.T) {
	m := NewMonitor()
	// Recorded under the monitor's name even if the status disagrees
	m.Update("calltracker", NewHealthy("something-else", "ok"))

	status, ok := m.Get("calltracker")
	require.True(t, ok)
	assert.Equal(t, "calltracker", status.Component)
}

func TestMonitor_UpdateFillsTimestamp(t *testing.T) {
	m := NewMonitor()
	m.Update("hub", Status{Status: "healthy", Healthy: true})

	status, ok := m.Get("hub")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Second)
}

func TestMonitor_ConvenienceMethods(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("ami-client", "connected")
	m.UpdateUnhealthy("hub", "listener closed")
	m.UpdateDegraded("nats", "event mirror disconnected")

	tests := []struct {
		component  string
		wantStatus string
	}{
		{"ami-client", "healthy"},
		{"hub", "unhealthy"},
		{"nats", "degraded"},
	}
	for _, tt := range tests {
		status, ok := m.Get(tt.component)
		require.True(t, ok, tt.component)
		assert.Equal(t, tt.wantStatus, status.Status)
	}
}

func TestMonitor_GetMissing(t *testing.T) {
	m := NewMonitor()
	_, ok := m.Get("nonexistent")
	assert.False(t, ok)
}

func TestMonitor_GetAllReturnsCopy(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("ami-client", "connected")

	all := m.GetAll()
	require.Len(t, all, 1)

	// Mutating the copy must not affect the monitor
	entry := all["ami-client"]
	entry.Status = "unhealthy"
	all["ami-client"] = entry

	status, _ := m.Get("ami-client")
	assert.Equal(t, "healthy", status.Status)
}

func TestMonitor_Remove(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("natspub", "publishing")
	m.Remove("natspub")

	_, ok := m.Get("natspub")
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestMonitor_AggregateHealth(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("ami-client", "connected")
	m.UpdateHealthy("calltracker", "tracking")
	agg := m.AggregateHealth("callstreams")
	assert.Equal(t, "healthy", agg.Status)
	assert.Len(t, agg.SubStatuses, 2)

	m.UpdateUnhealthy("ami-client", "connection lost")
	agg = m.AggregateHealth("callstreams")
	assert.Equal(t, "unhealthy", agg.Status)
}

func TestMonitor_ListComponents(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("ami-client", "ok")
	m.UpdateHealthy("hub", "ok")

	names := m.ListComponents()
	assert.ElementsMatch(t, []string{"ami-client", "hub"}, names)
}

func TestMonitor_Clear(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("ami-client", "ok")
	m.UpdateHealthy("hub", "ok")
	m.Clear()

	assert.Zero(t, m.Count())
	assert.Empty(t, m.ListComponents())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.UpdateHealthy("ami-client", "connected")
				m.UpdateDegraded("nats", "reconnecting")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.GetAll()
				_ = m.AggregateHealth("callstreams")
				_, _ = m.Get("ami-client")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, m.Count())
}
