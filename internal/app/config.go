package app

import (
	"rcarelay/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug level logging regardless of logging.level
	Debug bool

	// ConfigPath loads a single file instead of the layered configuration
	ConfigPath string

	// Overrides from command line flags, applied after loading
	Overrides Overrides

	// Version is reported by the admin endpoint
	Version string

	// RelayConfig is set once the configuration has been loaded
	RelayConfig *config.RelayConfig
}

// Overrides carries flag values. Nil fields were not set.
type Overrides struct {
	ListenHost   *string
	ListenPort   *int
	SceneHost    *string
	ScenePort    *int
	AdminEnabled *bool
	AdminPort    *int
}

// NewConfig creates a new application configuration
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}

// Apply writes every set override into cfg.
func (o Overrides) Apply(cfg *config.RelayConfig) {
	if o.ListenHost != nil {
		cfg.Listen.Host = *o.ListenHost
	}
	if o.ListenPort != nil {
		cfg.Listen.Port = *o.ListenPort
	}
	if o.SceneHost != nil {
		cfg.Scene.Host = *o.SceneHost
	}
	if o.ScenePort != nil {
		cfg.Scene.Port = *o.ScenePort
	}
	if o.AdminEnabled != nil {
		cfg.Admin.Enabled = *o.AdminEnabled
	}
	if o.AdminPort != nil {
		cfg.Admin.Port = *o.AdminPort
	}
}
