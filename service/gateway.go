package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/callstreams/ami"
	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/component"
	"github.com/c360/callstreams/config"
	"github.com/c360/callstreams/gateway"
	gwhttp "github.com/c360/callstreams/gateway/http"
	"github.com/c360/callstreams/gateway/websocket"
	"github.com/c360/callstreams/health"
	"github.com/c360/callstreams/metric"
	"github.com/c360/callstreams/natsclient"
	"github.com/c360/callstreams/output/natspub"
)

// healthPollInterval is how often component health is folded into the monitor
const healthPollInterval = 10 * time.Second

// Deps carries the runtime dependencies the gateway does not build itself.
type Deps struct {
	Config          *config.Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Gateway is the composition root. It wires the manager connection, call
// tracker, websocket hub, optional NATS mirror and the HTTP surfaces
// together, and owns their lifecycle: components start in dependency order
// and stop in reverse.
type Gateway struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor

	nats      *natsclient.Client // nil when no NATS URL is configured
	manager   *ami.Client
	tracker   *calltrack.Tracker
	commands  *gateway.Commands
	hub       *websocket.Hub
	publisher *natspub.Publisher // nil when no NATS URL is configured
	httpd     *gwhttp.Server
	metricsrv *metric.Server // nil when metrics are disabled

	// components in start order; stopped in reverse
	components []component.LifecycleComponent

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	healthDone chan struct{}
}

// New builds the fully wired gateway from configuration. Nothing connects
// or listens until Start.
func New(deps Deps) (*Gateway, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		cfg:      deps.Config,
		logger:   logger,
		registry: deps.MetricsRegistry,
		monitor:  health.NewMonitor(),
	}

	if err := g.build(); err != nil {
		return nil, err
	}
	return g, nil
}

// build constructs every component and wires the notification paths.
// Order matters: the tracker consumes the manager event channel, the hub
// and publisher listen on the tracker, the HTTP server fronts the hub.
func (g *Gateway) build() error {
	cfg := g.cfg

	if cfg.NATS.Enabled() {
		client, err := g.buildNATSClient()
		if err != nil {
			return fmt.Errorf("create NATS client: %w", err)
		}
		g.nats = client
	}

	// The connect callbacks run against g.tracker and g.hub, which are
	// assigned below before Start ever brings the connection up.
	g.manager = ami.NewClient(ami.ClientDeps{
		Name:            "manager",
		Config:          cfg.Manager,
		MetricsRegistry: g.registry,
		Logger:          g.logger,
		OnConnect:       g.onManagerConnect,
		OnDisconnect:    g.onManagerDisconnect,
	})

	g.tracker = calltrack.NewTracker(calltrack.TrackerDeps{
		Name: "calltracker",
		Config: calltrack.Config{
			AutoRouteExtension: cfg.Routing.GSMExtension,
			AutoRouteContext:   cfg.Routing.Context,
			RouteTimeout:       cfg.Routing.RouteTimeout,
		},
		Events:          g.manager.Events(),
		Actions:         g.manager,
		MetricsRegistry: g.registry,
		Logger:          g.logger,
	})

	g.commands = gateway.NewCommands(gateway.CommandsConfig{
		OriginateContext:  cfg.Gateway.OriginateContext,
		ChannelTechnology: cfg.Gateway.ChannelTechnology,
	}, g.manager, g.tracker, g.Status, g.logger)

	hubCfg := websocket.DefaultConfig()
	hubCfg.AllowedOrigins = cfg.Gateway.AllowedOrigins
	if cfg.Gateway.CommandTimeout > 0 {
		hubCfg.CommandTimeout = cfg.Gateway.CommandTimeout
	}
	g.hub = websocket.NewHub(websocket.HubDeps{
		Name:            "hub",
		Config:          hubCfg,
		Handler:         g.commands,
		Calls:           g.tracker,
		Status:          g.Status,
		MetricsRegistry: g.registry,
		Logger:          g.logger,
	})
	g.tracker.AddListener(g.hub.Notify)

	if g.nats != nil {
		pubCfg := natspub.DefaultConfig()
		if cfg.NATS.SubjectPrefix != "" {
			pubCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		publisher, err := natspub.NewPublisher(natspub.PublisherDeps{
			Name:            "natspub",
			Config:          pubCfg,
			Client:          g.nats,
			MetricsRegistry: g.registry,
			Logger:          g.logger,
		})
		if err != nil {
			return fmt.Errorf("create NATS publisher: %w", err)
		}
		g.publisher = publisher
		g.tracker.AddListener(publisher.Notify)
	}

	httpCfg := gwhttp.DefaultConfig()
	httpCfg.Addr = cfg.Gateway.Addr
	g.httpd = gwhttp.NewServer(gwhttp.ServerDeps{
		Name:      "httpserver",
		Config:    httpCfg,
		WebSocket: g.hub,
		Status:    g.Status,
		Calls:     g.tracker,
		Health:    g.monitor,
		Logger:    g.logger,
	})

	if cfg.Metrics.Enabled {
		g.metricsrv = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, g.registry, cfg.Security)
	}

	// Start order: consumers before producers so no event is dropped while
	// a downstream is still cold. The manager connection comes last among
	// the pipeline pieces; the HTTP server opens once state is flowing.
	g.components = []component.LifecycleComponent{g.tracker, g.hub}
	if g.publisher != nil {
		g.components = append(g.components, g.publisher)
	}
	g.components = append(g.components, g.manager, g.httpd)

	return nil
}

// natsLogger adapts slog to the natsclient.Logger interface.
type natsLogger struct{ l *slog.Logger }

func (n natsLogger) Printf(format string, v ...any) { n.l.Info(fmt.Sprintf(format, v...)) }
func (n natsLogger) Errorf(format string, v ...any) { n.l.Error(fmt.Sprintf(format, v...)) }
func (n natsLogger) Debugf(format string, v ...any) { n.l.Debug(fmt.Sprintf(format, v...)) }

func (g *Gateway) buildNATSClient() (*natsclient.Client, error) {
	cfg := g.cfg.NATS
	opts := []natsclient.ClientOption{
		natsclient.WithName("callstreams"),
		natsclient.WithLogger(natsLogger{l: g.logger.With("component", "nats")}),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}
	return natsclient.NewClient(cfg.URL, opts...)
}

// Start brings the gateway up. A NATS connection failure is logged and
// tolerated: the mirror is best effort and the client keeps reconnecting in
// the background. Any pipeline component failing to start rolls back the
// ones already started, in reverse order.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return fmt.Errorf("gateway already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	if g.nats != nil {
		if err := g.nats.Connect(runCtx); err != nil {
			g.logger.Warn("NATS connection failed, event mirroring degraded",
				"url", g.cfg.NATS.URL, "error", err)
		}
	}

	started := make([]component.LifecycleComponent, 0, len(g.components))
	for _, comp := range g.components {
		name := comp.Meta().Name
		if err := comp.Initialize(); err != nil {
			g.recordState(name, component.StateFailed)
			g.rollback(started)
			cancel()
			g.cancel = nil
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		g.recordState(name, component.StateInitialized)
		if err := comp.Start(runCtx); err != nil {
			g.recordState(name, component.StateFailed)
			g.rollback(started)
			cancel()
			g.cancel = nil
			return fmt.Errorf("start %s: %w", name, err)
		}
		g.recordState(name, component.StateStarted)
		started = append(started, comp)
		g.logger.Info("Component started", "component", name)
	}

	if g.metricsrv != nil {
		srv := g.metricsrv
		go func() {
			if err := srv.Start(); err != nil {
				g.logger.Error("Metrics server stopped", "error", err)
			}
		}()
		g.logger.Info("Metrics server listening", "address", srv.Address())
	}

	g.healthDone = make(chan struct{})
	go g.healthLoop(runCtx, g.healthDone)

	g.running = true
	g.logger.Info("Gateway started",
		"manager", g.managerAddr(),
		"listen", g.cfg.Gateway.Addr,
		"nats", g.cfg.NATS.Enabled())
	return nil
}

// Stop shuts components down in reverse start order, sharing the timeout
// across them. Safe to call more than once.
func (g *Gateway) Stop(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return nil
	}
	g.running = false

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}

	if g.metricsrv != nil {
		if err := g.metricsrv.Stop(); err != nil {
			g.logger.Error("Failed to stop metrics server", "error", err)
		}
	}

	var firstErr error
	for i := len(g.components) - 1; i >= 0; i-- {
		comp := g.components[i]
		name := comp.Meta().Name
		if err := comp.Stop(timeout); err != nil {
			g.recordState(name, component.StateFailed)
			g.recordError(name, "stop")
			g.logger.Error("Component stop failed", "component", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", name, err)
			}
			continue
		}
		g.recordState(name, component.StateStopped)
		g.logger.Info("Component stopped", "component", name)
	}

	if g.nats != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), timeout)
		if err := g.nats.Close(closeCtx); err != nil {
			g.logger.Error("Failed to close NATS connection", "error", err)
		}
		closeCancel()
	}

	if g.healthDone != nil {
		<-g.healthDone
		g.healthDone = nil
	}

	g.logger.Info("Gateway stopped")
	return firstErr
}

// rollback stops already started components in reverse order after a
// failed Start.
func (g *Gateway) rollback(started []component.LifecycleComponent) {
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i].Meta().Name
		if err := started[i].Stop(5 * time.Second); err != nil {
			g.recordError(name, "rollback")
			g.logger.Error("Rollback stop failed", "component", name, "error", err)
			continue
		}
		g.recordState(name, component.StateStopped)
	}
}

// recordState mirrors component lifecycle transitions into the shared
// metrics. The registry is optional; tests run without one.
func (g *Gateway) recordState(name string, state component.State) {
	if g.registry != nil {
		g.registry.CoreMetrics().RecordComponentState(name, int(state))
	}
}

func (g *Gateway) recordError(name, errorType string) {
	if g.registry != nil {
		g.registry.CoreMetrics().RecordError(name, errorType)
	}
}

// Status reports the gateway's current state. Served over /status and
// /ws/calls, and pushed to subscribers on manager reconnects.
func (g *Gateway) Status() gateway.Status {
	return gateway.Status{
		Connected:   g.manager.Connected(),
		ManagerAddr: g.managerAddr(),
		ActiveCalls: g.tracker.ActiveCount(),
		Subscribers: g.hub.Subscribers(),
		Timestamp:   time.Now(),
	}
}

// Health aggregates component health into a single system status.
func (g *Gateway) Health() health.Status {
	return g.monitor.AggregateHealth("callstreams")
}

// Addr returns the client-facing listen address once the gateway has
// started, which resolves ":0" style configs to the bound port.
func (g *Gateway) Addr() string {
	return g.httpd.Addr()
}

func (g *Gateway) managerAddr() string {
	return fmt.Sprintf("%s:%d", g.cfg.Manager.Host, g.cfg.Manager.Port)
}

// onManagerConnect fires on every successful login, including reconnects.
// Tracked state from the previous session is stale once the PBX link was
// lost, so the tracker drops it and subscribers get a fresh status.
func (g *Gateway) onManagerConnect() {
	g.tracker.Reset()
	g.hub.BroadcastStatus()
	g.monitor.UpdateHealthy("manager", "connected to PBX")
}

func (g *Gateway) onManagerDisconnect(err error) {
	g.monitor.UpdateUnhealthy("manager", fmt.Sprintf("connection lost: %v", err))
	g.hub.BroadcastStatus()
}

// healthLoop folds component self-reported health into the monitor so the
// /healthz endpoint reflects the whole pipeline.
func (g *Gateway) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	g.pollHealth()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.pollHealth()
		}
	}
}

func (g *Gateway) pollHealth() {
	for _, comp := range g.components {
		meta := comp.Meta()
		h := comp.Health()
		g.monitor.Update(meta.Name, health.FromComponentHealth(meta.Name, h))
		if g.registry != nil {
			g.registry.CoreMetrics().RecordHealthStatus(meta.Name, h.Healthy)
		}
	}
	if g.nats != nil {
		healthy := g.nats.IsHealthy()
		if healthy {
			g.monitor.UpdateHealthy("nats", "connected")
		} else {
			g.monitor.UpdateDegraded("nats", "event mirror disconnected")
		}
		if g.registry != nil {
			ns := g.nats.GetStatus()
			core := g.registry.CoreMetrics()
			core.RecordNATSStatus(healthy)
			core.RecordNATSRTT(ns.RTT)
			core.RecordNATSFailures(ns.FailureCount)
		}
	}
}
