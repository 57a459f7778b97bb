// Package main implements the entry point for the CallStreams gateway.
// CallStreams bridges a PBX manager interface to WebSocket subscribers:
// it tracks live call state from the manager event stream and serves it
// to clients, with optional mirroring to NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/callstreams/config"
	"github.com/c360/callstreams/metric"
	"github.com/c360/callstreams/service"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "callstreams"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(effectiveLogging(cliCfg, cfg))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting CallStreams (PBX to WebSocket gateway)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"manager", fmt.Sprintf("%s:%d", cfg.Manager.Host, cfg.Manager.Port))

	gw, err := service.New(service.Deps{
		Config:          cfg,
		MetricsRegistry: metric.NewMetricsRegistry(),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	return runWithSignalHandling(gw, cliCfg.ShutdownTimeout)
}

// runWithSignalHandling starts the gateway and blocks until a shutdown
// signal arrives
func runWithSignalHandling(gw *service.Gateway, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := gw.Start(signalCtx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	slog.Info("CallStreams started", "listen", gw.Addr())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := gw.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("CallStreams shutdown complete")
	return nil
}

// effectiveLogging resolves logging settings: explicit flags win over the
// config file, which wins over built-in defaults
func effectiveLogging(cliCfg *CLIConfig, cfg *config.Config) (string, string) {
	level := cfg.Logging.Level
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	format := cfg.Logging.Format
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}
	return level, format
}

// loadConfig loads configuration from the given path, or built-in
// defaults plus environment overrides when no path is given
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path == "" {
		return loader.Load()
	}
	return loader.LoadFile(path)
}
