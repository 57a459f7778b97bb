package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/gateway"
	"github.com/c360/callstreams/metric"
)

// Config holds configuration for the websocket hub component
type Config struct {
	// WriteTimeout bounds one message write to a subscriber
	WriteTimeout time.Duration `json:"write_timeout"`
	// PingInterval is how often idle subscribers are pinged
	PingInterval time.Duration `json:"ping_interval"`
	// PongTimeout evicts subscribers that stop answering pings
	PongTimeout time.Duration `json:"pong_timeout"`
	// CommandTimeout bounds one command round trip to the PBX
	CommandTimeout time.Duration `json:"command_timeout"`
	// MaxMessageBytes caps inbound command messages
	MaxMessageBytes int64 `json:"max_message_bytes"`
	// AllowedOrigins restricts the upgrade handshake; empty allows all
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// DefaultConfig returns sensible defaults for the hub
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		CommandTimeout:  15 * time.Second,
		MaxMessageBytes: 4096,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
}

// HubDeps holds runtime dependencies for the websocket hub component
type HubDeps struct {
	Name            string
	Config          Config
	Handler         gateway.CommandHandler  // Command dispatch
	Calls           gateway.CallSource      // Snapshot source for new subscribers
	Status          func() gateway.Status   // Optional status for new subscribers
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// Hub owns the subscriber set. Every notification goes to every subscriber;
// a failed write evicts only the failing subscriber. New subscribers first
// receive a snapshot of the live call set so they never start from nothing.
type Hub struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	handler gateway.CommandHandler
	calls   gateway.CallSource
	status  func() gateway.Status

	upgrader gws.Upgrader

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time

	// Flow counters (atomic for thread safety)
	delivered    atomic.Int64
	failures     atomic.Int64
	lastActivity atomic.Value // stores time.Time
}

// Ensure Hub implements all required interfaces
var _ component.Discoverable = (*Hub)(nil)
var _ component.LifecycleComponent = (*Hub)(nil)

// NewHub creates a new websocket hub component
func NewHub(deps HubDeps) *Hub {
	cfg := deps.Config
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "websocket-hub")
	}

	h := &Hub{
		name:        deps.Name,
		cfg:         cfg,
		logger:      logger,
		metrics:     newMetrics(deps.MetricsRegistry),
		handler:     deps.Handler,
		calls:       deps.Calls,
		status:      deps.Status,
		subscribers: make(map[string]*subscriber),
		startTime:   time.Now(),
	}
	h.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	h.lastActivity.Store(time.Time{})
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Meta returns the component metadata
func (h *Hub) Meta() component.Metadata {
	name := h.name
	if name == "" {
		name = "websocket-hub"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: "Fans call notifications out to websocket subscribers",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (h *Hub) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    h.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(h.failures.Load()),
		Uptime:     time.Since(h.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (h *Hub) DataFlow() component.FlowMetrics {
	delivered := h.delivered.Load()
	failed := h.failures.Load()
	lastActivity, _ := h.lastActivity.Load().(time.Time)

	var messagesPerSecond float64
	var errorRate float64
	if uptime := time.Since(h.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(delivered) / uptime
	}
	if total := delivered + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies
func (h *Hub) Initialize() error {
	if h.handler == nil {
		return errors.WrapInvalid(fmt.Errorf("nil command handler"),
			"websocket-hub", "Initialize", "dependency validation")
	}
	if h.calls == nil {
		return errors.WrapInvalid(fmt.Errorf("nil call source"),
			"websocket-hub", "Initialize", "dependency validation")
	}
	return nil
}

// Start launches the ping maintenance loop
func (h *Hub) Start(ctx context.Context) error {
	if h.running.Load() {
		return nil // Already running, idempotent
	}

	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})
	h.running.Store(true)
	h.startTime = time.Now()

	go func() {
		defer close(h.done)
		h.pingLoop(ctx)
	}()

	return nil
}

// Stop disconnects all subscribers and stops the maintenance loop
func (h *Hub) Stop(timeout time.Duration) error {
	if !h.running.CompareAndSwap(true, false) {
		return nil
	}
	close(h.shutdown)

	h.mu.Lock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		sub.close()
	}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.subscribers.Set(0)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"websocket-hub", "Stop", "graceful shutdown")
	}
}

// ServeHTTP upgrades the connection and registers the subscriber
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.running.Load() {
		http.Error(w, "hub not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := h.register(conn)
	h.logger.Info("Subscriber connected", "id", sub.id, "remote", r.RemoteAddr)
	go h.readPump(sub)
}

// register adds a subscriber and delivers its snapshot
func (h *Hub) register(conn wsConn) *subscriber {
	sub := &subscriber{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.subscribesTotal.Inc()
		h.metrics.subscribers.Set(float64(count))
	}

	h.sendSnapshot(sub)
	return sub
}

// sendSnapshot delivers the current live call set as one message, followed
// by a status message when a status source is wired
func (h *Hub) sendSnapshot(sub *subscriber) {
	calls := h.calls.Snapshot()
	if calls == nil {
		calls = []calltrack.Call{}
	}
	h.send(sub, gateway.Snapshot{
		Type:      "snapshot",
		Calls:     calls,
		Timestamp: time.Now(),
	})

	if h.status != nil {
		status := h.status()
		status.Type = "status"
		h.send(sub, status)
	}
}

// readPump consumes commands from one subscriber until its connection ends
func (h *Hub) readPump(sub *subscriber) {
	defer h.evict(sub, "read loop ended")

	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})
	_ = sub.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}
		if int64(len(data)) > h.cfg.MaxMessageBytes {
			h.sendReply(sub, gateway.Reply{
				Type: "reply", OK: false,
				ErrorKind: gateway.ErrorKindInvalidRequest,
				Message:   "message too large",
			})
			continue
		}
		h.handleMessage(sub, data)
	}
}

// handleMessage decodes one command, dispatches it, and replies to the
// issuing subscriber only
func (h *Hub) handleMessage(sub *subscriber, data []byte) {
	h.lastActivity.Store(time.Now())

	var cmd gateway.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.sendReply(sub, gateway.Reply{
			Type: "reply", OK: false,
			ErrorKind: gateway.ErrorKindInvalidRequest,
			Message:   "malformed command JSON",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.commandsReceived.WithLabelValues(cmd.Type).Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CommandTimeout)
	defer cancel()

	reply := h.handler.HandleCommand(ctx, cmd)
	if !reply.OK && h.metrics != nil {
		h.metrics.commandFailures.Inc()
	}
	h.sendReply(sub, reply)
}

func (h *Hub) sendReply(sub *subscriber, reply gateway.Reply) {
	h.send(sub, reply)
}

// send marshals and writes one message to one subscriber, evicting it on
// failure
func (h *Hub) send(sub *subscriber, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Message marshal failed", "error", err)
		return
	}
	if err := sub.write(gws.TextMessage, data, h.cfg.WriteTimeout); err != nil {
		h.failures.Add(1)
		if h.metrics != nil {
			h.metrics.deliveryFailures.Inc()
		}
		h.evict(sub, "write failed")
		return
	}
	h.delivered.Add(1)
	if h.metrics != nil {
		h.metrics.messagesDelivered.Inc()
	}
}

// Notify implements calltrack.Listener: tracker notifications become wire
// messages fanned out to every subscriber
func (h *Hub) Notify(n calltrack.Notification) {
	msg := wireMessage(n)
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Notification marshal failed", "type", n.Type, "error", err)
		return
	}
	h.broadcast(data)
}

// callMessage is the flat wire form of a call notification
type callMessage struct {
	Type      string              `json:"type"`
	Channel   string              `json:"channel"`
	UniqueID  string              `json:"unique_id,omitempty"`
	State     calltrack.CallState `json:"state"`
	CallerID  string              `json:"caller_id,omitempty"`
	Extension string              `json:"extension,omitempty"`
	CallType  calltrack.CallType  `json:"call_type"`
	Timestamp time.Time           `json:"timestamp"`
}

// eventMessage mirrors a raw manager event
type eventMessage struct {
	Type      string            `json:"type"`
	Event     map[string]string `json:"event"`
	Timestamp time.Time         `json:"timestamp"`
}

func wireMessage(n calltrack.Notification) any {
	switch n.Type {
	case calltrack.NotifyCallState, calltrack.NotifyCallEnded:
		if n.Call == nil {
			return nil
		}
		return callMessage{
			Type:      n.Type,
			Channel:   n.Call.Channel,
			UniqueID:  n.Call.UniqueID,
			State:     n.Call.State,
			CallerID:  n.Call.CallerID,
			Extension: n.Call.Extension,
			CallType:  n.Call.CallType,
			Timestamp: n.Timestamp,
		}
	case calltrack.NotifyAMIEvent:
		return eventMessage{Type: n.Type, Event: n.Event, Timestamp: n.Timestamp}
	default:
		return nil
	}
}

// BroadcastStatus pushes the current gateway status to every subscriber.
// Called after a manager reconnect so clients learn the link recovered and
// that tracked call state was reset.
func (h *Hub) BroadcastStatus() {
	if h.status == nil {
		return
	}
	status := h.status()
	status.Type = "status"
	data, err := json.Marshal(status)
	if err != nil {
		h.logger.Error("Failed to marshal status broadcast", "error", err)
		return
	}
	h.broadcast(data)
}

// broadcast writes one frame to every subscriber. Failures evict only the
// failing subscriber and never propagate to the caller.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.send(sub, rawMessage(data))
	}
}

// rawMessage avoids re-marshaling pre-encoded JSON in send
type rawMessage []byte

func (r rawMessage) MarshalJSON() ([]byte, error) { return r, nil }

// evict removes a subscriber; idempotent, safe from any goroutine
func (h *Hub) evict(sub *subscriber, reason string) {
	h.mu.Lock()
	_, present := h.subscribers[sub.id]
	if present {
		delete(h.subscribers, sub.id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	sub.close()
	if !present {
		return
	}

	if h.metrics != nil {
		h.metrics.evictionsTotal.Inc()
		h.metrics.subscribers.Set(float64(count))
	}
	h.logger.Info("Subscriber removed", "id", sub.id, "reason", reason)
}

// Subscribers returns the current subscriber count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// pingLoop keeps subscriber connections alive and prunes dead ones
func (h *Hub) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.mu.RLock()
			subs := make([]*subscriber, 0, len(h.subscribers))
			for _, sub := range h.subscribers {
				subs = append(subs, sub)
			}
			h.mu.RUnlock()

			deadline := time.Now().Add(h.cfg.WriteTimeout)
			for _, sub := range subs {
				if err := sub.conn.WriteControl(gws.PingMessage, nil, deadline); err != nil {
					h.evict(sub, "ping failed")
				}
			}
		}
	}
}
