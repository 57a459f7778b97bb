// Package http serves the gateway's HTTP surface: websocket upgrades,
// status and active-call queries, and aggregated health.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/gateway"
	"github.com/c360/callstreams/health"
)

// getOrGenerateRequestID extracts the request ID from headers or generates
// a new one so log lines from one request can be correlated
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Config holds configuration for the HTTP server component
type Config struct {
	// Addr is the listen address for the client-facing surface
	Addr string `json:"addr"`

	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DefaultConfig returns defaults for the HTTP server
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		ReadTimeout: 10 * time.Second,
		// Zero write timeout: websocket connections on this listener are
		// long-lived
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = def.IdleTimeout
	}
}

// ServerDeps holds runtime dependencies for the HTTP server component
type ServerDeps struct {
	Name      string
	Config    Config
	WebSocket http.Handler          // Mounted at /ws/calls
	Status    func() gateway.Status // Serves /status
	Calls     gateway.CallSource    // Serves /calls/active
	Health    *health.Monitor       // Serves /healthz
	Logger    *slog.Logger          // Runtime dependency
}

// Server exposes the gateway over HTTP. The websocket hub handles /ws/calls;
// the rest are plain JSON reads of local state.
type Server struct {
	name   string
	cfg    Config
	logger *slog.Logger

	ws      http.Handler
	status  func() gateway.Status
	calls   gateway.CallSource
	monitor *health.Monitor

	srv *http.Server
	ln  net.Listener

	// Lifecycle state (atomic operations)
	running   atomic.Bool
	startTime time.Time

	// Metrics (atomic operations)
	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
	lastActivity   atomic.Value // stores time.Time
}

// Ensure Server implements all required interfaces
var _ component.Discoverable = (*Server)(nil)
var _ component.LifecycleComponent = (*Server)(nil)

// NewServer creates a new HTTP server component
func NewServer(deps ServerDeps) *Server {
	cfg := deps.Config
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http-server")
	}

	s := &Server{
		name:      deps.Name,
		cfg:       cfg,
		logger:    logger,
		ws:        deps.WebSocket,
		status:    deps.Status,
		calls:     deps.Calls,
		monitor:   deps.Health,
		startTime: time.Now(),
	}
	s.lastActivity.Store(time.Time{})
	return s
}

// Meta returns the component metadata
func (s *Server) Meta() component.Metadata {
	name := s.name
	if name == "" {
		name = "http-server"
	}
	return component.Metadata{
		Name:        name,
		Type:        "gateway",
		Description: fmt.Sprintf("Client-facing HTTP surface on %s", s.cfg.Addr),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (s *Server) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    s.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(s.requestsFailed.Load()),
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *Server) DataFlow() component.FlowMetrics {
	total := s.requestsTotal.Load()
	failed := s.requestsFailed.Load()
	lastActivity, _ := s.lastActivity.Load().(time.Time)

	var requestsPerSecond float64
	var errorRate float64
	if uptime := time.Since(s.startTime).Seconds(); uptime > 0 {
		requestsPerSecond = float64(total) / uptime
	}
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: requestsPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies
func (s *Server) Initialize() error {
	if s.status == nil || s.calls == nil {
		return errors.WrapInvalid(fmt.Errorf("status and call sources are required"),
			"http-server", "Initialize", "dependency validation")
	}
	return nil
}

// Start binds the listener and begins serving. Bind failures surface here,
// not in the serve goroutine.
func (s *Server) Start(_ context.Context) error {
	if s.running.Load() {
		return nil // Already running, idempotent
	}

	mux := http.NewServeMux()
	if s.ws != nil {
		mux.Handle("/ws/calls", s.ws)
	}
	mux.HandleFunc("/status", s.instrument(s.handleStatus))
	mux.HandleFunc("/calls/active", s.instrument(s.handleActiveCalls))
	mux.HandleFunc("/healthz", s.instrument(s.handleHealthz))

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "http-server", "Start",
			fmt.Sprintf("bind %s", s.cfg.Addr))
	}

	s.ln = ln
	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.running.Store(true)
	s.startTime = time.Now()

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	return nil
}

// Stop drains connections within the timeout
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "http-server", "Stop", "graceful shutdown")
	}
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0"
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// instrument wraps a handler with request ID propagation and counters
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", getOrGenerateRequestID(r))
		s.requestsTotal.Add(1)
		s.lastActivity.Store(time.Now())

		if r.Method != http.MethodGet {
			s.requestsFailed.Add(1)
			s.writeError(w, http.StatusMethodNotAllowed,
				fmt.Sprintf("method %s not allowed", r.Method))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleActiveCalls(w http.ResponseWriter, _ *http.Request) {
	calls := s.calls.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active_calls": calls,
		"count":        len(calls),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.monitor == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	aggregate := s.monitor.AggregateHealth("callstreams")
	code := http.StatusOK
	if aggregate.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"status":     aggregate.Status,
		"message":    aggregate.Message,
		"components": s.monitor.GetAll(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.requestsFailed.Add(1)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}
	data, _ := json.Marshal(response)
	w.Write(data)
}
