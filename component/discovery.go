// Package component defines the interfaces the gateway's moving parts
// implement so the service layer can start, stop and inspect them
// uniformly: the manager client (input), the channel tracker
// (processor), and the WebSocket hub and NATS mirror (outputs).
package component

import (
	"time"
)

// Discoverable exposes a component's identity, health and throughput.
// The /healthz and /status endpoints are built from these.
type Discoverable interface {
	Meta() Metadata
	Health() HealthStatus
	DataFlow() FlowMetrics
}

// Metadata identifies a component
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "input", "processor", "output"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus is a component's self-reported health. LastError is
// sanitized by the health package before leaving the process.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics reports throughput for a component, frames in for the
// manager client and notifications out for the hub and mirror
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
