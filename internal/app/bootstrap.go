package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"rcarelay/internal/config"
	"rcarelay/pkg/logging"
)

// Application is the main application structure that bootstraps and runs the relay
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, sets up logging and creates the
// services. Nothing is bound until Run.
func NewApplication(cfg *Config) (*Application, error) {
	// Bootstrap logging until the configuration says otherwise
	logging.InitForCLI(levelFor(cfg.Debug, ""), os.Stdout)

	relayCfg, err := LoadRelayConfig(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load relay configuration")
		return nil, err
	}
	cfg.RelayConfig = &relayCfg

	if err := SetupLogging(cfg.Debug, relayCfg.Logging, os.Stdout); err != nil {
		return nil, err
	}

	services, err := InitializeServices(relayCfg, cfg.Version)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the application's services.
func (a *Application) Services() *Services { return a.services }

// LoadRelayConfig loads the layered configuration, or the single file named
// by cfg.ConfigPath, applies flag overrides and validates the result.
func LoadRelayConfig(cfg *Config) (config.RelayConfig, error) {
	var relayCfg config.RelayConfig
	var err error
	if cfg.ConfigPath != "" {
		relayCfg, err = config.LoadConfigFromPath(cfg.ConfigPath)
		if err != nil {
			return config.RelayConfig{}, fmt.Errorf("failed to load configuration from path %s: %w", cfg.ConfigPath, err)
		}
		logging.Info("Bootstrap", "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		relayCfg, err = config.LoadConfig()
		if err != nil {
			return config.RelayConfig{}, fmt.Errorf("failed to load configuration: %w", err)
		}
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	cfg.Overrides.Apply(&relayCfg)
	if err := relayCfg.Validate(); err != nil {
		return config.RelayConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return relayCfg, nil
}

// SetupLogging switches to the configured level and file sink. debug wins
// over the configured level.
func SetupLogging(debug bool, lc config.LoggingConfig, out io.Writer) error {
	if !debug && lc.Level != "" {
		if _, err := logging.ParseLevel(lc.Level); err != nil {
			return fmt.Errorf("invalid logging.level: %w", err)
		}
	}
	logging.EnableFileSink(logging.FileOptions{
		Path:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
	})
	logging.InitForCLI(levelFor(debug, lc.Level), out)
	if lc.File != "" {
		logging.Info("Bootstrap", "Also logging to %s", lc.File)
	}
	return nil
}

func levelFor(debug bool, configured string) logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	if level, err := logging.ParseLevel(configured); err == nil && configured != "" {
		return level
	}
	return logging.LevelInfo
}

// Run starts every service and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	return runServeMode(ctx, a.services)
}
