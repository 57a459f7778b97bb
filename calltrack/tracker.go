package calltrack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/callstreams/ami"
	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/metric"
)

// ActionSender is the slice of the manager client the tracker needs for
// automatic routing. Kept narrow so tests can fake it.
type ActionSender interface {
	Redirect(ctx context.Context, channel, dialplanContext, exten string, priority int) (*ami.Frame, error)
}

// Config holds configuration for the call tracker component
type Config struct {
	// AutoRouteExtension, when set, redirects incoming GSM calls to this
	// extension as soon as their channel appears
	AutoRouteExtension string `json:"auto_route_extension"`
	// AutoRouteContext is the dialplan context for automatic redirects
	AutoRouteContext string `json:"auto_route_context"`
	// RouteTimeout bounds one redirect action
	RouteTimeout time.Duration `json:"route_timeout"`
}

// DefaultConfig returns defaults with automatic routing disabled
func DefaultConfig() Config {
	return Config{
		AutoRouteContext: "from-internal",
		RouteTimeout:     5 * time.Second,
	}
}

// TrackerDeps holds runtime dependencies for the call tracker component
type TrackerDeps struct {
	Name            string
	Config          Config
	Events          <-chan *ami.Frame       // Wire-ordered event stream
	Actions         ActionSender            // Optional, enables auto-routing
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// Tracker consumes the manager event stream and maintains the live
// channel-to-call mapping. It is the single writer of that mapping; readers
// get copies through Snapshot and Get.
type Tracker struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	events  <-chan *ami.Frame
	actions ActionSender

	mu    sync.RWMutex
	calls map[string]*Call

	listenerMu sync.Mutex
	listeners  []Listener

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time

	// Flow counters (atomic for thread safety)
	eventsProcessed atomic.Int64
	errorCount      atomic.Int64
	lastActivity    atomic.Value // stores time.Time
	lastError       atomic.Value // stores string
}

// Ensure Tracker implements all required interfaces
var _ component.Discoverable = (*Tracker)(nil)
var _ component.LifecycleComponent = (*Tracker)(nil)

// NewTracker creates a new call tracker component
func NewTracker(deps TrackerDeps) *Tracker {
	cfg := deps.Config
	if cfg.RouteTimeout == 0 {
		cfg.RouteTimeout = DefaultConfig().RouteTimeout
	}
	if cfg.AutoRouteContext == "" {
		cfg.AutoRouteContext = DefaultConfig().AutoRouteContext
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "call-tracker")
	}

	t := &Tracker{
		name:      deps.Name,
		cfg:       cfg,
		logger:    logger,
		metrics:   newMetrics(deps.MetricsRegistry),
		events:    deps.Events,
		actions:   deps.Actions,
		calls:     make(map[string]*Call),
		startTime: time.Now(),
	}
	t.lastActivity.Store(time.Time{})
	t.lastError.Store("")
	return t
}

// Meta returns the component metadata
func (t *Tracker) Meta() component.Metadata {
	name := t.name
	if name == "" {
		name = "call-tracker"
	}
	return component.Metadata{
		Name:        name,
		Type:        "processor",
		Description: "Derives call lifecycle state from manager events",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (t *Tracker) Health() component.HealthStatus {
	lastErr, _ := t.lastError.Load().(string)
	return component.HealthStatus{
		Healthy:    t.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(t.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(t.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (t *Tracker) DataFlow() component.FlowMetrics {
	processed := t.eventsProcessed.Load()
	errCount := t.errorCount.Load()
	lastActivity, _ := t.lastActivity.Load().(time.Time)

	var eventsPerSecond float64
	var errorRate float64
	if uptime := time.Since(t.startTime).Seconds(); uptime > 0 {
		eventsPerSecond = float64(processed) / uptime
	}
	if processed > 0 {
		errorRate = float64(errCount) / float64(processed)
	}

	return component.FlowMetrics{
		MessagesPerSecond: eventsPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// AddListener registers a notification listener. Must be called before Start.
func (t *Tracker) AddListener(l Listener) {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Initialize validates dependencies
func (t *Tracker) Initialize() error {
	if t.events == nil {
		return errors.WrapInvalid(fmt.Errorf("nil event channel"),
			"call-tracker", "Initialize", "dependency validation")
	}
	return nil
}

// Start launches the single consumer goroutine
func (t *Tracker) Start(ctx context.Context) error {
	if t.running.Load() {
		return nil // Already running, idempotent
	}

	t.shutdown = make(chan struct{})
	t.done = make(chan struct{})
	t.running.Store(true)
	t.startTime = time.Now()

	go func() {
		defer close(t.done)
		t.consume(ctx)
	}()

	return nil
}

// Stop gracefully stops the tracker with the specified timeout
func (t *Tracker) Stop(timeout time.Duration) error {
	if !t.running.CompareAndSwap(true, false) {
		return nil
	}
	close(t.shutdown)

	select {
	case <-t.done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"call-tracker", "Stop", "graceful shutdown")
	}
}

// consume processes events in wire order until shutdown
func (t *Tracker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.shutdown:
			return
		case frame, ok := <-t.events:
			if !ok {
				return
			}
			t.Process(frame)
		}
	}
}

// Process applies one event frame to the call mapping and notifies
// listeners. Exported so the event source can be driven directly in tests
// and by components that bypass the channel.
func (t *Tracker) Process(frame *ami.Frame) {
	if frame == nil {
		return
	}

	t.eventsProcessed.Add(1)
	t.lastActivity.Store(time.Now())
	if t.metrics != nil {
		t.metrics.eventsProcessed.Inc()
	}

	switch frame.EventName() {
	case "Newchannel":
		t.handleNewChannel(frame)
	case "Newstate":
		t.handleNewState(frame)
	case "Dial", "DialBegin":
		t.handleDial(frame)
	case "Hangup":
		t.handleHangup(frame)
	}

	// Every processed event is mirrored downstream regardless of whether it
	// changed a call
	t.notify(Notification{
		Type:      NotifyAMIEvent,
		Event:     frame.Map(),
		Timestamp: time.Now(),
	})
}

func (t *Tracker) handleNewChannel(frame *ami.Frame) {
	channel := frame.Get("Channel")
	if channel == "" {
		return
	}

	call := t.upsert(channel, frame)
	t.notifyCall(NotifyCallState, call)

	if call.CallType == CallTypeIncomingGSM && t.cfg.AutoRouteExtension != "" && t.actions != nil {
		go t.route(channel)
	}
}

func (t *Tracker) handleNewState(frame *ami.Frame) {
	channel := frame.Get("Channel")
	if channel == "" {
		return
	}

	state := mapChannelState(frame.Get("ChannelStateDesc"), frame.Get("ChannelState"))

	t.mu.Lock()
	call, ok := t.calls[channel]
	if !ok {
		// State change for a channel never seen: synthesize rather than drop
		call = t.newCall(channel, frame)
		t.calls[channel] = call
		if t.metrics != nil {
			t.metrics.callsSynthesized.Inc()
			t.metrics.activeCalls.Set(float64(len(t.calls)))
		}
	}
	changed := state != "" && call.State != state
	if changed {
		call.State = state
	}
	call.UpdatedAt = time.Now()
	if cid := frame.Get("CallerIDNum"); cid != "" {
		call.CallerID = cid
	}
	snapshot := *call
	t.mu.Unlock()

	if changed {
		if t.metrics != nil {
			t.metrics.stateChanges.WithLabelValues(string(state)).Inc()
		}
		t.notifyCall(NotifyCallState, &snapshot)
	} else if !ok {
		t.notifyCall(NotifyCallState, &snapshot)
	}
}

func (t *Tracker) handleDial(frame *ami.Frame) {
	channel := frame.Get("Channel")
	if channel == "" {
		return
	}

	t.mu.Lock()
	call, ok := t.calls[channel]
	if !ok {
		call = t.newCall(channel, frame)
		t.calls[channel] = call
		if t.metrics != nil {
			t.metrics.callsSynthesized.Inc()
			t.metrics.activeCalls.Set(float64(len(t.calls)))
		}
	}
	if dest := frame.Get("DestChannel"); dest != "" {
		call.DestChannel = dest
	} else if dest := frame.Get("Destination"); dest != "" {
		call.DestChannel = dest
	}
	call.UpdatedAt = time.Now()
	t.mu.Unlock()
}

func (t *Tracker) handleHangup(frame *ami.Frame) {
	channel := frame.Get("Channel")
	if channel == "" {
		return
	}

	t.mu.Lock()
	call, ok := t.calls[channel]
	if !ok {
		// Hangup for an unseen channel still produces a terminal
		// notification so subscribers see a complete lifecycle
		call = t.newCall(channel, frame)
		if t.metrics != nil {
			t.metrics.callsSynthesized.Inc()
		}
	} else {
		delete(t.calls, channel)
	}
	call.State = StateTerminated
	call.UpdatedAt = time.Now()
	liveCount := len(t.calls)
	snapshot := *call
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.callsTerminated.Inc()
		t.metrics.activeCalls.Set(float64(liveCount))
	}
	t.notifyCall(NotifyCallEnded, &snapshot)
}

// upsert creates or refreshes the call for a channel and returns a copy
func (t *Tracker) upsert(channel string, frame *ami.Frame) *Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	call, ok := t.calls[channel]
	if !ok {
		call = t.newCall(channel, frame)
		t.calls[channel] = call
		if t.metrics != nil {
			t.metrics.callsCreated.Inc()
			t.metrics.activeCalls.Set(float64(len(t.calls)))
		}
	} else {
		call.UpdatedAt = time.Now()
		if cid := frame.Get("CallerIDNum"); cid != "" {
			call.CallerID = cid
		}
	}
	snapshot := *call
	return &snapshot
}

// newCall builds a Call from the fields an event carries. Caller holds t.mu.
func (t *Tracker) newCall(channel string, frame *ami.Frame) *Call {
	now := time.Now()
	return &Call{
		Channel:   channel,
		UniqueID:  frame.Get("Uniqueid"),
		State:     StateInitiated,
		CallerID:  frame.Get("CallerIDNum"),
		Extension: frame.Get("Exten"),
		CallType:  classifyChannel(channel, frame.Get("Context")),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// route redirects an incoming GSM channel to the configured extension
func (t *Tracker) route(channel string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.RouteTimeout)
	defer cancel()

	_, err := t.actions.Redirect(ctx, channel, t.cfg.AutoRouteContext, t.cfg.AutoRouteExtension, 1)
	if err != nil {
		t.errorCount.Add(1)
		t.lastError.Store(err.Error())
		t.logger.Warn("Automatic route failed", "channel", channel,
			"extension", t.cfg.AutoRouteExtension, "error", err)
		return
	}
	if t.metrics != nil {
		t.metrics.callsRouted.Inc()
	}
	t.logger.Info("Routed incoming call", "channel", channel,
		"extension", t.cfg.AutoRouteExtension)
}

func (t *Tracker) notifyCall(notifyType string, call *Call) {
	t.notify(Notification{
		Type:      notifyType,
		Call:      call,
		Timestamp: time.Now(),
	})
}

func (t *Tracker) notify(n Notification) {
	t.listenerMu.Lock()
	listeners := t.listeners
	t.listenerMu.Unlock()

	for _, l := range listeners {
		l(n)
	}
}

// Snapshot returns a copy of every live call
func (t *Tracker) Snapshot() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()

	calls := make([]Call, 0, len(t.calls))
	for _, call := range t.calls {
		calls = append(calls, *call)
	}
	return calls
}

// Get returns a copy of the call for a channel
func (t *Tracker) Get(channel string) (Call, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	call, ok := t.calls[channel]
	if !ok {
		return Call{}, false
	}
	return *call, true
}

// ActiveCount returns the size of the live set
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.calls)
}

// Reset discards all tracked calls. Called after a reconnect, when the PBX
// is the source of truth and everything tracked before is stale.
func (t *Tracker) Reset() {
	t.mu.Lock()
	cleared := len(t.calls)
	t.calls = make(map[string]*Call)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.activeCalls.Set(0)
	}
	if cleared > 0 {
		t.logger.Info("Discarded stale calls after reconnect", "count", cleared)
	}
}
