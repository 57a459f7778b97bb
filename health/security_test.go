package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Unix file path",
			input:    "failed to open /etc/callstreams/gateway.json",
			expected: "failed to open [PATH]",
		},
		{
			name:     "Windows file path",
			input:    "cannot read C:\\Users\\Admin\\gateway.json",
			expected: "cannot read [PATH]",
		},
		{
			name:     "HTTP URL",
			input:    "webhook post to https://ops.example.com/v1/alerts failed",
			expected: "webhook post to [URL] failed",
		},
		{
			name:     "NATS URL",
			input:    "cannot connect to nats://localhost:4222",
			expected: "cannot connect to [URL]",
		},
		{
			name:     "WebSocket URL",
			input:    "subscriber handshake with wss://gw.example.com/ws/calls failed",
			expected: "subscriber handshake with [URL] failed",
		},
		{
			name:     "PBX address",
			input:    "timeout connecting to 192.168.1.100",
			expected: "timeout connecting to [IP]",
		},
		{
			name:     "manager port",
			input:    "failed to bind to :5038",
			expected: "failed to bind to [PORT]",
		},
		{
			name:     "AMI secret in error",
			input:    "login failed with secret:hunter2",
			expected: "login failed with [REDACTED]",
		},
		{
			name:     "multiple sensitive items",
			input:    "failed to connect to https://192.168.1.1:8080/api with token=abc123def",
			expected: "failed to connect to [URL] with [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeErrorMessage(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	original := Status{
		Component: "callstreams",
		Status:    "healthy",
		SubStatuses: []Status{
			{Component: "ami-client", Status: "healthy"},
		},
	}

	modified := original.WithSubStatus(Status{
		Component: "hub",
		Status:    "unhealthy",
	})

	assert.Len(t, original.SubStatuses, 1, "original should still have 1 sub-status")
	assert.Len(t, modified.SubStatuses, 2, "modified should have 2 sub-statuses")

	assert.Equal(t, "ami-client", original.SubStatuses[0].Component)
	assert.Equal(t, "ami-client", modified.SubStatuses[0].Component)
	assert.Equal(t, "hub", modified.SubStatuses[1].Component)

	// Mutating the original must not leak into the copy
	original.SubStatuses[0].Status = "degraded"
	assert.Equal(t, "degraded", original.SubStatuses[0].Status)
	assert.Equal(t, "healthy", modified.SubStatuses[0].Status)
}
