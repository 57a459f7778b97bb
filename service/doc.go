// Package service wires the gateway together and owns component lifecycle.
//
// The Gateway is a static composition root: construction in New builds
// every component and connects the notification paths, Start brings them
// up in dependency order, Stop tears them down in reverse.
//
// The pipeline looks like this:
//
//	PBX manager socket ──> ami.Client ──> calltrack.Tracker ──┬──> websocket.Hub ──> subscribers
//	                                                          └──> natspub.Publisher ──> NATS
//
// The tracker consumes the manager event channel and fans notifications
// out to listeners. The websocket hub is always wired; the NATS publisher
// only when a NATS URL is configured. The HTTP server fronts the hub and
// serves status, active calls and health; the Prometheus endpoint runs on
// its own listener.
//
// On every successful manager login, including reconnects, the gateway
// resets tracked call state and pushes a fresh status to all websocket
// subscribers, since state learned over a dead connection is stale.
//
// Usage:
//
//	gw, err := service.New(service.Deps{
//	    Config:          cfg,
//	    MetricsRegistry: metric.NewMetricsRegistry(),
//	    Logger:          logger,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(30 * time.Second)
package service
