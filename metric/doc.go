// Package metric provides Prometheus-based metrics collection and the
// HTTP server that exposes them for scraping.
//
// The package has three pieces:
//
//  1. Core metrics: gateway-level gauges and counters registered up
//     front (Metrics type) covering component lifecycle, health, and
//     the NATS event mirror.
//  2. Component registration: the MetricsRegistrar interface through
//     which each component registers its own counters under its name.
//  3. HTTP server: a standalone listener serving the metrics endpoint
//     (Server type), kept off the client-facing gateway port.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry, security.Config{})
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordComponentState("ami-client", 2) // started
//	core.RecordHealthStatus("ami-client", true)
//
// # Core Metrics
//
// All core metrics use the "callstreams" namespace:
//
//   - callstreams_component_state{component="..."}: lifecycle state
//     (0=created, 1=initialized, 2=started, 3=stopped, 4=failed)
//   - callstreams_health_status{component="..."}: 0/1 health
//   - callstreams_errors_total{component="...",type="..."}
//   - callstreams_nats_connected, callstreams_nats_rtt_milliseconds,
//     callstreams_nats_failures
//
// The Go runtime and process collectors are registered as well, so
// go_goroutines, process_resident_memory_bytes and friends come for
// free.
//
// # Component Metrics
//
// Components register their own metrics at construction time through
// the MetricsRegistrar interface:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "ami_frames_received_total",
//	    Help: "Frames read from the manager socket",
//	})
//	if err := registry.RegisterCounter("ami-client", "ami_frames_received_total", counter); err != nil {
//	    return err
//	}
//
// Registration is keyed by component name plus metric name, so a
// component registering twice fails fast instead of silently double
// counting. Vector variants (RegisterCounterVec, RegisterGaugeVec,
// RegisterHistogramVec) work the same way.
//
// The registry wraps a private prometheus.Registry. Nothing leaks in
// from the default global registry, and tests can create as many
// registries as they need without cross-talk.
//
// # HTTP Server
//
// The server exposes three endpoints:
//
//   - GET /metrics (path configurable): Prometheus exposition format,
//     OpenMetrics negotiation enabled
//   - GET /health: plain liveness probe
//   - GET /: HTML index linking the two
//
// Start blocks until Stop is called or the listener fails, so it runs
// in its own goroutine. When the platform security config enables
// server TLS, the listener terminates TLS with certificates loaded
// through pkg/tlsutil.
//
// Prometheus scrape config:
//
//	scrape_configs:
//	  - job_name: 'callstreams'
//	    static_configs:
//	      - targets: ['localhost:9090']
//	    metrics_path: '/metrics'
//
// # Thread Safety
//
// Registration and unregistration are mutex-protected. Recording on
// registered metrics is lock-free per the Prometheus client contract,
// so hot paths (frame parsing, hub broadcasts) record without
// contention.
package metric
