package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/gateway"
	"github.com/c360/callstreams/health"
)

type staticCalls struct {
	calls []calltrack.Call
}

func (s *staticCalls) Snapshot() []calltrack.Call { return s.calls }

func startTestServer(t *testing.T, calls gateway.CallSource, monitor *health.Monitor) *Server {
	t.Helper()
	srv := NewServer(ServerDeps{
		Name:   "test",
		Config: Config{Addr: "127.0.0.1:0"},
		Status: func() gateway.Status {
			return gateway.Status{
				Connected:   true,
				ManagerAddr: "pbx.example.internal:5038",
				ActiveCalls: 2,
				Subscribers: 1,
				Timestamp:   time.Now(),
			}
		},
		Calls:  calls,
		Health: monitor,
	})
	require.NoError(t, srv.Initialize())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		_ = srv.Stop(2 * time.Second)
	})
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestServer_Status(t *testing.T) {
	srv := startTestServer(t, &staticCalls{}, nil)

	var status gateway.Status
	resp := getJSON(t, "http://"+srv.Addr()+"/status", &status)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.ActiveCalls)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServer_ActiveCalls(t *testing.T) {
	srv := startTestServer(t, &staticCalls{calls: []calltrack.Call{
		{Channel: "SIP/101-1", State: calltrack.StateUp},
		{Channel: "Dongle/gsm0-1", State: calltrack.StateRinging, CallType: calltrack.CallTypeIncomingGSM},
	}}, nil)

	var body struct {
		ActiveCalls []calltrack.Call `json:"active_calls"`
		Count       int              `json:"count"`
	}
	resp := getJSON(t, "http://"+srv.Addr()+"/calls/active", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.ActiveCalls, 2)
	assert.Equal(t, calltrack.StateUp, body.ActiveCalls[0].State)
}

func TestServer_HealthzHealthy(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("ami-client", "connected")
	monitor.UpdateHealthy("call-tracker", "tracking")

	srv := startTestServer(t, &staticCalls{}, monitor)

	var body map[string]any
	resp := getJSON(t, "http://"+srv.Addr()+"/healthz", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_HealthzUnhealthy(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateUnhealthy("ami-client", "connection refused")

	srv := startTestServer(t, &staticCalls{}, monitor)

	var body map[string]any
	resp := getJSON(t, "http://"+srv.Addr()+"/healthz", &body)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := startTestServer(t, &staticCalls{}, nil)

	resp, err := http.Post("http://"+srv.Addr()+"/status", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StopIsIdempotent(t *testing.T) {
	srv := startTestServer(t, &staticCalls{}, nil)

	require.NoError(t, srv.Stop(time.Second))
	require.NoError(t, srv.Stop(time.Second))
}
