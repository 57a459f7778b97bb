package ami

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/metric"
	"github.com/c360/callstreams/pkg/buffer"
	"github.com/c360/callstreams/pkg/retry"
	"github.com/c360/callstreams/pkg/security"
	"github.com/c360/callstreams/pkg/tlsutil"
)

// Config holds configuration for the manager client component
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Secret   string `json:"secret"`

	// ActionTimeout bounds the wait for a correlated response
	ActionTimeout time.Duration `json:"action_timeout"`
	// ConnectTimeout bounds the TCP dial
	ConnectTimeout time.Duration `json:"connect_timeout"`
	// LoginTimeout bounds banner read plus authentication
	LoginTimeout time.Duration `json:"login_timeout"`
	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration `json:"write_timeout"`

	// EventBufferSize caps the event buffer between the read loop and the
	// dispatcher; oldest events are dropped when consumers fall behind
	EventBufferSize int `json:"event_buffer_size"`
	// ActionIDPrefix namespaces generated correlation identifiers
	ActionIDPrefix string `json:"action_id_prefix"`
	// MaxAuthAttempts is the number of consecutive authentication failures
	// tolerated before the client gives up permanently
	MaxAuthAttempts int `json:"max_auth_attempts"`

	// UseTLS dials the manager over TLS (Asterisk serves this on 5039)
	UseTLS bool `json:"use_tls,omitempty"`
	// TLS configures trust anchors and optional client certificates for
	// the manager connection
	TLS security.ClientTLSConfig `json:"tls,omitempty"`

	// Reconnect controls the backoff between connection attempts
	Reconnect retry.Config `json:"-"`
}

// DefaultConfig returns sensible defaults for the manager client
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5038,
		Username:        "admin",
		Secret:          "admin123",
		ActionTimeout:   10 * time.Second,
		ConnectTimeout:  5 * time.Second,
		LoginTimeout:    5 * time.Second,
		WriteTimeout:    5 * time.Second,
		EventBufferSize: 1024,
		ActionIDPrefix:  "callstreams",
		MaxAuthAttempts: 3,
		Reconnect:       retry.Reconnect(),
	}
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.WrapInvalid(fmt.Errorf("empty host"),
			"Config", "Validate", "host validation")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", c.Port),
			"Config", "Validate", "port validation")
	}
	if c.Username == "" {
		return errors.WrapInvalid(fmt.Errorf("empty username"),
			"Config", "Validate", "credentials validation")
	}
	return nil
}

// applyDefaults fills zero-valued optional fields
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ActionTimeout == 0 {
		c.ActionTimeout = def.ActionTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.LoginTimeout == 0 {
		c.LoginTimeout = def.LoginTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = def.EventBufferSize
	}
	if c.ActionIDPrefix == "" {
		c.ActionIDPrefix = def.ActionIDPrefix
	}
	if c.MaxAuthAttempts == 0 {
		c.MaxAuthAttempts = def.MaxAuthAttempts
	}
	if c.Reconnect.InitialDelay == 0 {
		c.Reconnect = def.Reconnect
	}
}

// ClientDeps holds runtime dependencies for the manager client component
type ClientDeps struct {
	Name            string                  // Instance name
	Config          Config                  // Connection configuration
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency

	// OnConnect fires after a successful login, including reconnects.
	// Consumers use it to resynchronize state with the PBX.
	OnConnect func()
	// OnDisconnect fires when an established connection is lost, with the
	// error that broke it.
	OnDisconnect func(error)
}

// Client maintains the persistent manager socket: it logs in, correlates
// action responses by ActionID, dispatches unsolicited events, and
// reconnects with backoff when the connection drops.
type Client struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	onConnect    func()
	onDisconnect func(error)

	// Connection state
	connMu sync.RWMutex
	conn   net.Conn
	reader *FrameReader

	// writeMu serializes frame writes so concurrent senders never interleave
	writeMu sync.Mutex

	// Pending action table
	pendingMu sync.Mutex
	pending   map[string]chan *Frame

	actionSeq atomic.Uint64
	loggedIn  atomic.Bool

	// Event path: read loop -> buffer -> dispatcher -> out channel
	events    buffer.Buffer[*Frame]
	eventWake chan struct{}
	out       chan *Frame

	// Lifecycle management
	shutdown  chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	wg        sync.WaitGroup

	// Flow counters (atomic for thread safety)
	framesReceived atomic.Int64
	eventsEmitted  atomic.Int64
	errorCount     atomic.Int64
	reconnectCount atomic.Int64
	lastActivity   atomic.Value // stores time.Time
	lastError      atomic.Value // stores string
}

// Ensure Client implements all required interfaces
var _ component.Discoverable = (*Client)(nil)
var _ component.LifecycleComponent = (*Client)(nil)

// NewClient creates a new manager client component
func NewClient(deps ClientDeps) *Client {
	cfg := deps.Config
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ami-client")
	}

	var bufferOpts []buffer.Option[*Frame]
	bufferOpts = append(bufferOpts, buffer.WithOverflowPolicy[*Frame](buffer.DropOldest))
	if deps.MetricsRegistry != nil {
		bufferOpts = append(bufferOpts, buffer.WithMetrics[*Frame](deps.MetricsRegistry, "ami_events"))
	}

	eventBuffer, err := buffer.NewCircularBuffer(cfg.EventBufferSize, bufferOpts...)
	if err != nil {
		logger.Error("Failed to create event buffer", "error", err)
		return nil
	}

	c := &Client{
		name:         deps.Name,
		cfg:          cfg,
		logger:       logger,
		metrics:      newMetrics(deps.MetricsRegistry),
		onConnect:    deps.OnConnect,
		onDisconnect: deps.OnDisconnect,
		pending:      make(map[string]chan *Frame),
		events:       eventBuffer,
		eventWake:    make(chan struct{}, 1),
		out:          make(chan *Frame),
		startTime:    time.Now(),
	}
	c.lastActivity.Store(time.Time{})
	c.lastError.Store("")
	return c
}

// Meta returns the component metadata
func (c *Client) Meta() component.Metadata {
	name := c.name
	if name == "" {
		name = "ami-client"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("Manager socket client for %s:%d", c.cfg.Host, c.cfg.Port),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (c *Client) Health() component.HealthStatus {
	running := c.running.Load()
	connected := c.loggedIn.Load()
	lastErr, _ := c.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    running && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(c.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (c *Client) DataFlow() component.FlowMetrics {
	frames := c.framesReceived.Load()
	errCount := c.errorCount.Load()
	lastActivity, _ := c.lastActivity.Load().(time.Time)

	var framesPerSecond float64
	var errorRate float64

	if uptime := time.Since(c.startTime).Seconds(); uptime > 0 {
		framesPerSecond = float64(frames) / uptime
	}
	if frames > 0 {
		errorRate = float64(errCount) / float64(frames)
	}

	return component.FlowMetrics{
		MessagesPerSecond: framesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Events returns the channel of unsolicited event frames. The channel is
// unbuffered; the internal event buffer absorbs bursts and drops the oldest
// events if the consumer stalls.
func (c *Client) Events() <-chan *Frame {
	return c.out
}

// Connected reports whether the client is currently logged in.
func (c *Client) Connected() bool {
	return c.loggedIn.Load()
}

// Initialize validates configuration but opens no connection
func (c *Client) Initialize() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if c.events == nil {
		return errors.WrapInvalid(fmt.Errorf("nil event buffer"),
			"ami-client", "Initialize", "buffer validation")
	}
	return nil
}

// Start launches the connection manager and event dispatcher goroutines
func (c *Client) Start(ctx context.Context) error {
	if c.running.Load() {
		return nil // Already running, idempotent
	}

	ctx, cancel := context.WithCancel(ctx)
	c.shutdown = make(chan struct{})
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)
	c.startTime = time.Now()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.dispatchLoop(ctx)
	}()
	go func() {
		c.wg.Wait()
		close(c.done)
	}()

	return nil
}

// Stop gracefully stops the client with the specified timeout
func (c *Client) Stop(timeout time.Duration) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	close(c.shutdown)
	if c.cancel != nil {
		c.cancel()
	}

	// Best-effort session goodbye; no reply is awaited since the PBX
	// closes the socket in response
	if c.loggedIn.Load() {
		_ = c.writeFrame(NewAction("Logoff").Marshal())
	}

	// Close the socket to unblock the read loop
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"ami-client", "Stop", "graceful shutdown")
	}

	_ = c.events.Close()
	return nil
}

// run owns the connect/read/teardown cycle until shutdown
func (c *Client) run(ctx context.Context) {
	for {
		authFailures := 0
		err := retry.DoForever(ctx, c.cfg.Reconnect, func() error {
			select {
			case <-c.shutdown:
				return retry.NonRetryable(errors.ErrShuttingDown)
			default:
			}

			connErr := c.connect(ctx)
			if connErr == nil {
				return nil
			}

			if stderrors.Is(connErr, errors.ErrAuthenticationFailed) {
				authFailures++
				if authFailures >= c.cfg.MaxAuthAttempts {
					return retry.NonRetryable(connErr)
				}
			}
			c.errorCount.Add(1)
			c.lastError.Store(connErr.Error())
			c.logger.Warn("Manager connection attempt failed", "error", connErr)
			return connErr
		})
		if err != nil {
			if stderrors.Is(err, errors.ErrAuthenticationFailed) {
				c.lastError.Store(err.Error())
				c.logger.Error("Giving up on manager connection", "error", err,
					"attempts", c.cfg.MaxAuthAttempts)
			}
			return
		}

		c.logger.Info("Connected to manager", "host", c.cfg.Host, "port", c.cfg.Port)
		if c.metrics != nil {
			c.metrics.connected.Set(1)
		}
		if c.onConnect != nil {
			c.onConnect()
		}

		readErr := c.readLoop(ctx)
		c.teardown()

		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		c.errorCount.Add(1)
		if readErr != nil {
			c.lastError.Store(readErr.Error())
		}
		c.reconnectCount.Add(1)
		if c.metrics != nil {
			c.metrics.reconnects.Inc()
		}
		c.logger.Warn("Manager connection lost, reconnecting", "error", readErr)
		if c.onDisconnect != nil {
			c.onDisconnect(readErr)
		}
	}
}

// connect dials the manager socket, consumes the banner, and authenticates.
// On success the connection is installed and ready for the read loop.
func (c *Client) connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}

	var conn net.Conn
	var err error
	if c.cfg.UseTLS {
		tlsCfg, cfgErr := tlsutil.LoadClientTLSConfigWithMTLS(c.cfg.TLS, c.cfg.TLS.MTLS)
		if cfgErr != nil {
			return errors.WrapFatal(cfgErr, "Client", "connect", "load TLS config")
		}
		tlsDialer := tls.Dialer{NetDialer: &dialer, Config: tlsCfg}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return errors.WrapTransient(err, "Client", "connect", "dial manager socket")
	}

	// Banner and login share one deadline
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.LoginTimeout))
	reader := NewFrameReader(conn)

	banner, err := reader.ReadLine()
	if err != nil {
		_ = conn.Close()
		return errors.WrapTransient(err, "Client", "connect", "read banner")
	}
	c.logger.Debug("Manager banner received", "banner", banner)

	if err := c.login(conn, reader); err != nil {
		_ = conn.Close()
		return err
	}

	_ = conn.SetReadDeadline(time.Time{})

	c.connMu.Lock()
	c.conn = conn
	c.reader = reader
	c.connMu.Unlock()
	c.loggedIn.Store(true)

	return nil
}

// login writes the Login action and consumes frames until its response
// arrives. Events received before the response are dispatched normally.
func (c *Client) login(conn net.Conn, reader *FrameReader) error {
	loginID := c.nextActionID()
	action := NewAction("Login").
		Set("Username", c.cfg.Username).
		Set("Secret", c.cfg.Secret).
		Set("ActionID", loginID)

	if _, err := conn.Write(action.Marshal()); err != nil {
		return errors.WrapTransient(err, "Client", "login", "write login action")
	}

	for {
		frame, err := reader.Next()
		if err != nil {
			return errors.WrapTransient(err, "Client", "login", "read login response")
		}

		if Classify(frame) != KindResponse {
			// Pre-login events (FullyBooted) flow into the normal path
			c.dispatchFrame(frame)
			continue
		}

		if !frame.IsSuccess() {
			return fmt.Errorf("%w: %s", errors.ErrAuthenticationFailed, frame.Message())
		}
		return nil
	}
}

// readLoop consumes frames until the connection breaks or shutdown begins
func (c *Client) readLoop(ctx context.Context) error {
	c.connMu.RLock()
	reader := c.reader
	c.connMu.RUnlock()
	if reader == nil {
		return errors.ErrNoConnection
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.shutdown:
			return nil
		default:
		}

		frame, err := reader.Next()
		if err != nil {
			select {
			case <-c.shutdown:
				return nil
			default:
			}
			if errors.IsInvalid(err) && !stderrors.Is(err, io.EOF) {
				// Oversized or overfull input. The reader keeps its
				// position, so parsing realigns at the next blank-line
				// delimiter; only the offending frame is lost.
				c.errorCount.Add(1)
				c.lastError.Store(err.Error())
				if c.metrics != nil {
					c.metrics.malformedFrames.Inc()
				}
				c.logger.Warn("Dropping malformed manager frame", "error", err)
				continue
			}
			return errors.WrapTransient(err, "Client", "readLoop", "read frame")
		}

		c.handleFrame(frame)
	}
}

// handleFrame routes one incoming frame by classification
func (c *Client) handleFrame(frame *Frame) {
	c.framesReceived.Add(1)
	now := time.Now()
	c.lastActivity.Store(now)
	if c.metrics != nil {
		c.metrics.framesReceived.Inc()
		c.metrics.lastActivity.Set(float64(now.Unix()))
	}

	switch Classify(frame) {
	case KindResponse:
		c.resolveResponse(frame)
	case KindEvent:
		c.dispatchFrame(frame)
	default:
		if c.metrics != nil {
			c.metrics.unknownFrames.Inc()
		}
		c.logger.Debug("Discarding unclassifiable frame", "fields", frame.Len())
	}
}

// resolveResponse delivers a response to the action waiting on its ActionID.
// Responses with no matching pending action are counted and discarded.
func (c *Client) resolveResponse(frame *Frame) {
	id := frame.ActionID()

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	pendingLen := len(c.pending)
	c.pendingMu.Unlock()

	if !ok {
		if c.metrics != nil {
			c.metrics.unmatchedResponses.Inc()
		}
		c.logger.Debug("Response matched no pending action", "action_id", id)
		return
	}

	if c.metrics != nil {
		c.metrics.responsesReceived.Inc()
		c.metrics.pendingActions.Set(float64(pendingLen))
	}
	ch <- frame // capacity 1, never blocks
}

// dispatchFrame buffers an event frame and wakes the dispatcher
func (c *Client) dispatchFrame(frame *Frame) {
	if c.metrics != nil {
		c.metrics.eventsReceived.Inc()
	}
	if err := c.events.Write(frame); err != nil {
		return
	}
	select {
	case c.eventWake <- struct{}{}:
	default:
	}
}

// dispatchLoop drains the event buffer to the output channel
func (c *Client) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-c.eventWake:
		}

		for {
			frames := c.events.ReadBatch(64)
			if len(frames) == 0 {
				break
			}
			for _, frame := range frames {
				select {
				case c.out <- frame:
					c.eventsEmitted.Add(1)
				case <-ctx.Done():
					return
				case <-c.shutdown:
					return
				}
			}
		}
	}
}

// teardown closes the connection and fails every pending action with
// ErrConnectionLost (delivered by closing its channel)
func (c *Client) teardown() {
	c.loggedIn.Store(false)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.reader = nil
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()

	if c.metrics != nil {
		c.metrics.connected.Set(0)
		c.metrics.pendingActions.Set(0)
	}
}

// nextActionID generates a process-unique correlation identifier
func (c *Client) nextActionID() string {
	return fmt.Sprintf("%s-%d", c.cfg.ActionIDPrefix, c.actionSeq.Add(1))
}

// SendAction writes an action and blocks until its correlated response
// arrives, the action timeout elapses, or ctx is cancelled. An ActionID is
// generated when the action does not carry one. Rejected actions return the
// Error response frame together with ErrActionRejected.
func (c *Client) SendAction(ctx context.Context, action *Action) (*Frame, error) {
	if !c.loggedIn.Load() {
		return nil, errors.WrapTransient(errors.ErrNoConnection,
			"Client", "SendAction", "connection check")
	}

	id := action.ActionID()
	if id == "" {
		id = c.nextActionID()
		action.Set("ActionID", id)
	}

	ch := make(chan *Frame, 1)
	c.pendingMu.Lock()
	if _, dup := c.pending[id]; dup {
		c.pendingMu.Unlock()
		return nil, errors.WrapInvalid(fmt.Errorf("duplicate ActionID %s", id),
			"Client", "SendAction", "pending registration")
	}
	c.pending[id] = ch
	pendingLen := len(c.pending)
	c.pendingMu.Unlock()
	if c.metrics != nil {
		c.metrics.pendingActions.Set(float64(pendingLen))
	}

	if err := c.writeFrame(action.Marshal()); err != nil {
		c.unregister(id)
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.actionsSent.Inc()
	}
	start := time.Now()

	timer := time.NewTimer(c.cfg.ActionTimeout)
	defer timer.Stop()

	select {
	case frame, ok := <-ch:
		if !ok {
			return nil, errors.WrapTransient(errors.ErrConnectionLost,
				"Client", "SendAction", fmt.Sprintf("action %s", action.Name()))
		}
		if c.metrics != nil {
			c.metrics.actionLatency.Observe(time.Since(start).Seconds())
		}
		if !frame.IsSuccess() {
			if c.metrics != nil {
				c.metrics.actionErrors.Inc()
			}
			return frame, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrActionRejected, frame.Message()),
				"Client", "SendAction", fmt.Sprintf("action %s", action.Name()))
		}
		return frame, nil

	case <-timer.C:
		c.unregister(id)
		if c.metrics != nil {
			c.metrics.actionTimeouts.Inc()
		}
		return nil, errors.WrapTransient(errors.ErrActionTimeout,
			"Client", "SendAction", fmt.Sprintf("action %s", action.Name()))

	case <-ctx.Done():
		c.unregister(id)
		return nil, ctx.Err()
	}
}

// writeFrame serializes one frame write to the socket
func (c *Client) writeFrame(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return errors.WrapTransient(errors.ErrNoConnection,
			"Client", "writeFrame", "connection check")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := conn.Write(payload); err != nil {
		return errors.WrapTransient(err, "Client", "writeFrame", "socket write")
	}
	return nil
}

// unregister removes a pending action after timeout or cancellation. A
// response that arrives afterwards is counted as unmatched.
func (c *Client) unregister(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	pendingLen := len(c.pending)
	c.pendingMu.Unlock()
	if c.metrics != nil {
		c.metrics.pendingActions.Set(float64(pendingLen))
	}
}
