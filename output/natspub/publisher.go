// Package natspub mirrors call tracker notifications onto NATS subjects.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/errors"
	"github.com/c360/callstreams/metric"
	"github.com/c360/callstreams/natsclient"
	"github.com/c360/callstreams/pkg/buffer"
	"github.com/c360/callstreams/pkg/retry"
)

// EventPublisher is the slice of the NATS client the publisher needs.
// Kept narrow so tests can fake it.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config holds configuration for the NATS publisher component
type Config struct {
	// SubjectPrefix is prepended to every published subject
	SubjectPrefix string `json:"subject_prefix"`
	// PublishTimeout bounds one publish attempt including retries
	PublishTimeout time.Duration `json:"publish_timeout"`
	// QueueSize is the notification queue capacity. Oldest notifications
	// are dropped when the consumer falls behind.
	QueueSize int `json:"queue_size"`
	// Retry governs re-publishing after transient failures
	Retry retry.Config `json:"retry"`
}

// DefaultConfig returns default NATS publisher configuration
func DefaultConfig() Config {
	return Config{
		SubjectPrefix:  "telephony",
		PublishTimeout: 5 * time.Second,
		QueueSize:      1024,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
	}
}

// PublisherDeps holds runtime dependencies for the NATS publisher component
type PublisherDeps struct {
	Name            string
	Config          Config
	Client          EventPublisher          // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// Publisher forwards call notifications to NATS. It implements
// calltrack.Listener through Notify, which enqueues without blocking; a
// single consumer goroutine marshals and publishes with retries so a slow
// broker never stalls the tracker.
type Publisher struct {
	name    string
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	client  EventPublisher

	queue buffer.Buffer[calltrack.Notification]
	wake  chan struct{}

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time

	// Flow counters (atomic for thread safety)
	publishedCount atomic.Int64
	errorCount     atomic.Int64
	lastActivity   atomic.Value // stores time.Time
	lastError      atomic.Value // stores string
}

// Ensure Publisher implements all required interfaces
var _ component.Discoverable = (*Publisher)(nil)
var _ component.LifecycleComponent = (*Publisher)(nil)
var _ calltrack.Listener = (*Publisher)(nil).Notify

// NewPublisher creates a new NATS publisher component
func NewPublisher(deps PublisherDeps) (*Publisher, error) {
	cfg := deps.Config
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultConfig().SubjectPrefix
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultConfig().Retry
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-publisher")
	}

	opts := []buffer.Option[calltrack.Notification]{
		buffer.WithOverflowPolicy[calltrack.Notification](buffer.DropOldest),
	}
	if deps.MetricsRegistry != nil {
		opts = append(opts, buffer.WithMetrics[calltrack.Notification](deps.MetricsRegistry, "natspub_queue"))
	}
	queue, err := buffer.NewCircularBuffer(cfg.QueueSize, opts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "nats-publisher", "NewPublisher", "create notification queue")
	}

	p := &Publisher{
		name:      deps.Name,
		cfg:       cfg,
		logger:    logger,
		metrics:   newMetrics(deps.MetricsRegistry),
		client:    deps.Client,
		queue:     queue,
		wake:      make(chan struct{}, 1),
		startTime: time.Now(),
	}
	p.lastActivity.Store(time.Time{})
	p.lastError.Store("")
	return p, nil
}

// Meta returns the component metadata
func (p *Publisher) Meta() component.Metadata {
	name := p.name
	if name == "" {
		name = "nats-publisher"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: "Publishes call state notifications to NATS subjects",
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (p *Publisher) Health() component.HealthStatus {
	lastErr, _ := p.lastError.Load().(string)
	return component.HealthStatus{
		Healthy:    p.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(p.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     time.Since(p.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (p *Publisher) DataFlow() component.FlowMetrics {
	published := p.publishedCount.Load()
	errCount := p.errorCount.Load()
	lastActivity, _ := p.lastActivity.Load().(time.Time)

	var perSecond float64
	var errorRate float64
	if uptime := time.Since(p.startTime).Seconds(); uptime > 0 {
		perSecond = float64(published) / uptime
	}
	if published > 0 {
		errorRate = float64(errCount) / float64(published)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies
func (p *Publisher) Initialize() error {
	if p.client == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"nats-publisher", "Initialize", "dependency validation")
	}
	return nil
}

// Start launches the publish loop
func (p *Publisher) Start(ctx context.Context) error {
	if p.running.Load() {
		return nil // Already running, idempotent
	}

	p.shutdown = make(chan struct{})
	p.done = make(chan struct{})
	p.running.Store(true)
	p.startTime = time.Now()

	go func() {
		defer close(p.done)
		p.publishLoop(ctx)
	}()

	return nil
}

// Stop drains the queue and stops the publish loop
func (p *Publisher) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}
	p.running.Store(false)
	close(p.shutdown)

	select {
	case <-p.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"nats-publisher", "Stop", "graceful shutdown")
	}

	return p.queue.Close()
}

// Notify enqueues a notification for publishing. It never blocks; when the
// queue is full the oldest entry is dropped.
func (p *Publisher) Notify(n calltrack.Notification) {
	if !p.running.Load() {
		return
	}
	if err := p.queue.Write(n); err != nil {
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// publishLoop drains the queue until shutdown
func (p *Publisher) publishLoop(ctx context.Context) {
	for {
		for _, n := range p.queue.ReadBatch(64) {
			p.publish(ctx, n)
		}

		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			// Final drain so queued notifications survive an orderly stop
			for _, n := range p.queue.ReadBatch(p.cfg.QueueSize) {
				p.publish(ctx, n)
			}
			return
		case <-p.wake:
		}
	}
}

// publish marshals one notification and sends it with retries
func (p *Publisher) publish(ctx context.Context, n calltrack.Notification) {
	subject := p.subjectFor(n)
	data, err := json.Marshal(wirePayload(n))
	if err != nil {
		p.recordError(err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	attempt := 0
	err = retry.Do(pubCtx, p.cfg.Retry, func() error {
		attempt++
		if attempt > 1 && p.metrics != nil {
			p.metrics.publishRetries.Inc()
		}
		pubErr := p.client.Publish(pubCtx, subject, data)
		if pubErr == natsclient.ErrCircuitOpen {
			// Circuit stays open for seconds; drop instead of spinning
			return retry.NonRetryable(pubErr)
		}
		return pubErr
	})
	if err != nil {
		p.recordError(err)
		if p.metrics != nil {
			p.metrics.publishFailures.Inc()
		}
		p.logger.Warn("dropping notification after failed publish",
			"subject", subject, "error", err)
		return
	}

	p.publishedCount.Add(1)
	p.lastActivity.Store(time.Now())
	if p.metrics != nil {
		p.metrics.published.WithLabelValues(n.Type).Inc()
		p.metrics.bytesPublished.Add(float64(len(data)))
	}
}

// subjectFor maps a notification to its NATS subject
func (p *Publisher) subjectFor(n calltrack.Notification) string {
	switch n.Type {
	case calltrack.NotifyCallState:
		return p.cfg.SubjectPrefix + ".call.state"
	case calltrack.NotifyCallEnded:
		return p.cfg.SubjectPrefix + ".call.ended"
	case calltrack.NotifyAMIEvent:
		name := "unknown"
		if n.Event != nil && n.Event["Event"] != "" {
			name = strings.ToLower(n.Event["Event"])
		}
		return p.cfg.SubjectPrefix + ".ami.event." + name
	default:
		return p.cfg.SubjectPrefix + ".notification"
	}
}

func (p *Publisher) recordError(err error) {
	p.errorCount.Add(1)
	p.lastError.Store(err.Error())
}

// callPayload is the wire shape for call notifications
type callPayload struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	UniqueID  string    `json:"unique_id,omitempty"`
	State     string    `json:"state"`
	CallerID  string    `json:"caller_id,omitempty"`
	Extension string    `json:"extension,omitempty"`
	CallType  string    `json:"call_type"`
	Timestamp time.Time `json:"timestamp"`
}

// eventPayload is the wire shape for mirrored raw events
type eventPayload struct {
	Type      string            `json:"type"`
	Event     map[string]string `json:"event"`
	Timestamp time.Time         `json:"timestamp"`
}

// wirePayload converts a notification into its wire shape
func wirePayload(n calltrack.Notification) any {
	if n.Call != nil {
		return callPayload{
			Type:      n.Type,
			Channel:   n.Call.Channel,
			UniqueID:  n.Call.UniqueID,
			State:     string(n.Call.State),
			CallerID:  n.Call.CallerID,
			Extension: n.Call.Extension,
			CallType:  string(n.Call.CallType),
			Timestamp: n.Timestamp,
		}
	}
	return eventPayload{
		Type:      n.Type,
		Event:     n.Event,
		Timestamp: n.Timestamp,
	}
}
