// Package component provides the core component infrastructure for CallStreams,
// defining the lifecycle and discovery contracts that every pipeline stage
// implements.
//
// # Overview
//
// The component package defines fundamental abstractions for all CallStreams
// components, supporting three component types: inputs (the manager socket
// client), processors (call state tracking), and outputs (WebSocket and NATS
// delivery). Components are self-describing units that expose identity, health
// status, and data flow metrics at runtime.
//
// The pipeline is statically wired: the service layer constructs each
// component, connects them with channels, and drives them through the shared
// lifecycle.
//
// # Lifecycle Pattern
//
// All components follow the same lifecycle:
//
//	comp := ami.NewClient(cfg, deps)
//	if err := comp.Initialize(); err != nil { ... }   // setup only, no context
//	if err := comp.Start(ctx); err != nil { ... }     // context passed through
//	defer comp.Stop(5 * time.Second)                  // graceful with timeout
//
// Components never store the context they receive. The service layer owns the
// contexts and cancels them to coordinate orderly shutdown in reverse start
// order.
//
// # Health and Flow Reporting
//
// Every component reports health through Discoverable:
//
//	status := comp.Health()
//	if !status.Healthy {
//	    log.Warn("component degraded", "component", comp.Meta().Name,
//	        "error", status.LastError)
//	}
//
// FlowMetrics gives per-component throughput for the status endpoint without
// requiring a metrics backend.
package component
