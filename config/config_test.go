package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temp dir below the working
// directory so path validation accepts it
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir, err := os.MkdirTemp(".", "config-test-")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Manager.Host)
	assert.Equal(t, 5038, cfg.Manager.Port)
	assert.Equal(t, ":8080", cfg.Gateway.Addr)
	assert.Equal(t, "from-internal", cfg.Gateway.OriginateContext)
	assert.Equal(t, "SIP", cfg.Gateway.ChannelTechnology)
	assert.Equal(t, "telephony", cfg.NATS.SubjectPrefix)
	assert.False(t, cfg.NATS.Enabled())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"manager": {
			"host": "pbx.internal",
			"username": "gateway",
			"secret": "s3cret",
			"action_timeout": "15s"
		},
		"gateway": {"addr": ":9000"},
		"nats": {"url": "nats://broker:4222"},
		"routing": {"gsm_extension": "1000", "route_timeout": "2s"}
	}`)

	loader := NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "pbx.internal", cfg.Manager.Host)
	assert.Equal(t, "gateway", cfg.Manager.Username)
	assert.Equal(t, 15*time.Second, cfg.Manager.ActionTimeout)
	// Fields absent from the file keep defaults
	assert.Equal(t, 5038, cfg.Manager.Port)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.True(t, cfg.NATS.Enabled())
	assert.Equal(t, "1000", cfg.Routing.GSMExtension)
	assert.Equal(t, 2*time.Second, cfg.Routing.RouteTimeout)
}

func TestLoader_LayerMerge(t *testing.T) {
	base := writeConfig(t, `{
		"manager": {"host": "pbx.internal", "username": "gateway", "secret": "base"},
		"gateway": {"addr": ":8080"}
	}`)
	override := writeConfig(t, `{
		"manager": {"secret": "prod"},
		"metrics": {"enabled": false}
	}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	// Override wins where present
	assert.Equal(t, "prod", cfg.Manager.Secret)
	assert.False(t, cfg.Metrics.Enabled)
	// Base survives where the override is silent
	assert.Equal(t, "pbx.internal", cfg.Manager.Host)
	assert.Equal(t, "gateway", cfg.Manager.Username)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("CALLSTREAMS_MANAGER_HOST", "env-pbx")
	t.Setenv("CALLSTREAMS_MANAGER_SECRET", "env-secret")
	t.Setenv("CALLSTREAMS_NATS_URL", "nats://env-broker:4222")
	t.Setenv("CALLSTREAMS_LOG_LEVEL", "DEBUG")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-pbx", cfg.Manager.Host)
	assert.Equal(t, "env-secret", cfg.Manager.Secret)
	assert.Equal(t, "nats://env-broker:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoader_RejectsMissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFile("does-not-exist.json")
	assert.Error(t, err)
}

func TestLoader_RejectsNonJSONPath(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFile("config.yaml")
	assert.Error(t, err)
}

func TestLoader_RejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"manager": {`)
	loader := NewLoader()
	_, err := loader.LoadFile(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := NewLoader().getDefaults()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty manager host",
			mutate:  func(c *Config) { c.Manager.Host = "" },
			wantErr: "manager configuration",
		},
		{
			name:    "empty gateway addr",
			mutate:  func(c *Config) { c.Gateway.Addr = "" },
			wantErr: "gateway.addr",
		},
		{
			name:    "metrics enabled without addr",
			mutate:  func(c *Config) { c.Metrics.Port = 0 },
			wantErr: "metrics.port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid.Clone()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_StringMasksCredentials(t *testing.T) {
	cfg := NewLoader().getDefaults()
	cfg.Manager.Secret = "supersecret"
	cfg.NATS.Password = "natspass"
	cfg.NATS.Token = "natstoken"

	s := cfg.String()
	assert.NotContains(t, s, "supersecret")
	assert.NotContains(t, s, "natspass")
	assert.NotContains(t, s, "natstoken")
	assert.True(t, strings.Contains(s, "***"))
}
