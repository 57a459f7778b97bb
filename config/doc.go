// Package config provides configuration management for the gateway.
//
// This package handles loading and validation of gateway configuration from
// JSON files and environment variables.
//
// # Core Components
//
// Config: Main configuration structure containing the PBX manager connection,
// the WebSocket/HTTP surface, optional NATS mirroring, automatic routing, the
// metrics endpoint and logging.
//
// Loader: Loads configuration with layer merging (base + overrides) and
// environment variable substitution for flexible deployment scenarios.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//	    return err
//	}
//
// A minimal config file:
//
//	{
//	  "manager": {
//	    "host": "pbx.internal",
//	    "port": 5038,
//	    "username": "gateway",
//	    "secret": "s3cret",
//	    "action_timeout": "10s"
//	  },
//	  "gateway": {"addr": ":8080"},
//	  "nats": {"url": "nats://localhost:4222"},
//	  "routing": {"gsm_extension": "1000"}
//	}
//
// Duration fields accept Go duration strings ("10s", "1m30s").
//
// # Environment Overrides
//
// A fixed set of variables override file values, so credentials can stay out
// of config files:
//
//	CALLSTREAMS_MANAGER_HOST
//	CALLSTREAMS_MANAGER_USERNAME
//	CALLSTREAMS_MANAGER_SECRET
//	CALLSTREAMS_GATEWAY_ADDR
//	CALLSTREAMS_NATS_URL
//	CALLSTREAMS_NATS_USERNAME
//	CALLSTREAMS_NATS_PASSWORD
//	CALLSTREAMS_NATS_TOKEN
//	CALLSTREAMS_LOG_LEVEL
//
// # Security
//
// Config files are read through path validation (no traversal, JSON only,
// size capped) and parsed with a nesting depth limit. String() masks the
// manager secret and NATS credentials so configs can be logged safely.
package config
