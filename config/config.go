package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/c360/callstreams/ami"
	"github.com/c360/callstreams/pkg/security"
)

// Config represents the complete gateway configuration
type Config struct {
	Version string        `json:"version,omitempty"` // Semantic version of the config file
	Manager ami.Config    `json:"manager"`           // PBX manager connection
	Gateway GatewayConfig `json:"gateway"`           // WebSocket/HTTP surface
	NATS    NATSConfig    `json:"nats,omitempty"`    // Optional event mirroring
	Routing RoutingConfig `json:"routing,omitempty"` // Automatic call routing
	Metrics MetricsConfig `json:"metrics,omitempty"` // Prometheus endpoint
	Logging LoggingConfig `json:"logging,omitempty"` // Structured logging

	Security security.Config `json:"security,omitempty"` // TLS for served endpoints
}

// GatewayConfig defines the subscriber-facing surface
type GatewayConfig struct {
	Addr              string        `json:"addr"`                        // HTTP listen address
	AllowedOrigins    []string      `json:"allowed_origins,omitempty"`   // WebSocket origin allowlist (empty = any)
	OriginateContext  string        `json:"originate_context,omitempty"` // Dialplan context for originated calls
	ChannelTechnology string        `json:"channel_tech,omitempty"`      // Technology prefix for originated channels
	CommandTimeout    time.Duration `json:"command_timeout,omitempty"`   // Bound on one subscriber command
}

// NATSConfig defines optional NATS event mirroring. An empty URL disables it.
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	SubjectPrefix string        `json:"subject_prefix,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
}

// Enabled reports whether NATS mirroring is configured
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// RoutingConfig defines automatic routing of incoming GSM calls
type RoutingConfig struct {
	GSMExtension string        `json:"gsm_extension,omitempty"` // Empty disables auto-routing
	Context      string        `json:"context,omitempty"`
	RouteTimeout time.Duration `json:"route_timeout,omitempty"`
}

// MetricsConfig defines the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LoggingConfig defines structured logging behavior
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json or text
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		// Fallback to shallow copy if unmarshaling fails
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := c.Manager.Validate(); err != nil {
		return fmt.Errorf("manager configuration: %w", err)
	}

	if c.Gateway.Addr == "" {
		return errors.New("gateway.addr is required")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be 1-65535 when metrics are enabled, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}

	return nil
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "CALLSTREAMS",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Manager: ami.DefaultConfig(),
		Gateway: GatewayConfig{
			Addr:              ":8080",
			OriginateContext:  "from-internal",
			ChannelTechnology: "SIP",
		},
		NATS: NATSConfig{
			SubjectPrefix: "telephony",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Routing: RoutingConfig{
			Context:      "from-internal",
			RouteTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	// Unmarshal into map
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// durationKeys lists the duration-valued fields per config section so files
// can say "10s" instead of nanoseconds
var durationKeys = map[string][]string{
	"manager": {"action_timeout", "connect_timeout", "login_timeout", "write_timeout"},
	"gateway": {"command_timeout"},
	"nats":    {"reconnect_wait"},
	"routing": {"route_timeout"},
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	for section, keys := range durationKeys {
		sectionMap, ok := data[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if s, ok := sectionMap[key].(string); ok {
				if d, err := time.ParseDuration(s); err == nil {
					sectionMap[key] = d.Nanoseconds()
				}
			}
		}
	}
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// env returns a validated environment override, or empty when unset or invalid
func (l *Loader) env(name string) string {
	key := l.envPrefix + "_" + name
	val := os.Getenv(key)
	if val == "" {
		return ""
	}
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	// Manager overrides
	if val := l.env("MANAGER_HOST"); val != "" {
		cfg.Manager.Host = val
	}
	if val := l.env("MANAGER_USERNAME"); val != "" {
		cfg.Manager.Username = val
	}
	if val := l.env("MANAGER_SECRET"); val != "" {
		cfg.Manager.Secret = val
	}

	// Gateway overrides
	if val := l.env("GATEWAY_ADDR"); val != "" {
		cfg.Gateway.Addr = val
	}

	// NATS overrides
	if val := l.env("NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := l.env("NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := l.env("NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := l.env("NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	// Logging overrides
	if val := l.env("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Manager.Secret != "" {
		clone.Manager.Secret = "***"
	}
	if clone.NATS.Password != "" {
		clone.NATS.Password = "***"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}
