// Package health tracks the health of gateway components and rolls them
// up into the status served on the /healthz endpoint.
//
// Each component the gateway runs (the manager connection, the subscriber
// hub, the channel tracker, the event mirror) reports a Status. A Monitor
// collects them and aggregates a gateway-wide view.
//
// # Health States
//
// A status is one of three states:
//   - healthy: component operating normally
//   - degraded: component up but impaired, for example the manager client
//     mid-reconnect or the event mirror with its circuit open
//   - unhealthy: component not functioning
//
// The degraded state exists because the gateway keeps serving subscribers
// through a manager reconnect; reporting that window as unhealthy would
// flap load-balancer checks for an outage the gateway is absorbing.
//
// # Usage
//
// Components report into a shared Monitor:
//
//	monitor := health.NewMonitor()
//
//	monitor.UpdateHealthy("manager", "logged in to PBX")
//	monitor.UpdateDegraded("natsclient", "circuit open, probing broker")
//	monitor.UpdateUnhealthy("hub", "listener closed unexpectedly")
//
//	if status, ok := monitor.Get("manager"); ok && status.IsHealthy() {
//	    // manager session is up
//	}
//
// The /healthz handler serves the aggregate:
//
//	gateway := monitor.AggregateHealth("gateway")
//
// Aggregation is worst-case: any unhealthy component makes the gateway
// unhealthy, any degraded one (with none unhealthy) makes it degraded.
// A single dead manager connection must not be masked by a healthy hub.
//
// # Hierarchical Status
//
// A status can carry sub-statuses, so a component with internal parts
// reports them under one name:
//
//	manager := health.NewHealthy("manager", "session up").
//	    WithSubStatus(health.NewHealthy("reader", "frames flowing")).
//	    WithSubStatus(health.NewDegraded("actions", "2 pending past deadline"))
//
// Aggregation reads only the top-level state of each status; sub-statuses
// ride along in the JSON for operators digging into a failure.
//
// # Metrics
//
// A Status optionally carries a Metrics block (uptime, error count,
// messages processed, last activity) that the service layer mirrors into
// Prometheus gauges:
//
//	status := health.NewHealthy("tracker", "tracking 42 channels").
//	    WithMetrics(&health.Metrics{
//	        Uptime:            time.Since(start),
//	        MessagesProcessed: processed,
//	        LastActivity:      lastEvent,
//	    })
//
// # Component Conversion and Sanitization
//
// FromComponentHealth converts a component.HealthStatus into a Status.
// The component's last error is sanitized on the way through: manager
// dial errors embed the PBX address and can embed the AMI secret, and
// those must not appear on a health dashboard. URLs, file paths, IP
// addresses, ports and credential assignments are replaced with
// placeholders ([URL], [PATH], [IP], [PORT], [REDACTED]). There is no
// opt-out.
//
// # Concurrency and Immutability
//
// All Monitor operations are safe for concurrent use; it holds an RWMutex
// so reads from the /health handler never block component updates for
// long. Status is a value type: WithMetrics and WithSubStatus return
// copies, and GetAll returns a copy of the map. A caller can never
// mutate a status another goroutine is reading.
package health
