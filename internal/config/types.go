package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// RelayConfig is the top-level configuration structure for rcarelay.
type RelayConfig struct {
	Listen      ListenConfig     `yaml:"listen"`
	Scene       SceneConfig      `yaml:"scene"`
	Connections ConnectionConfig `yaml:"connections"`
	Admin       AdminConfig      `yaml:"admin"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// ListenConfig is where the relay accepts planner and unit connections.
type ListenConfig struct {
	Host string `yaml:"host,omitempty"` // Empty binds all interfaces
	Port int    `yaml:"port,omitempty"`
}

// Address returns host:port suitable for net.Listen.
func (l ListenConfig) Address() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// SceneConfig is the outbound scene endpoint.
type SceneConfig struct {
	Host              string        `yaml:"host,omitempty"`
	Port              int           `yaml:"port,omitempty"`
	ReconnectInterval time.Duration `yaml:"reconnectInterval,omitempty"` // 0 dials once
	QueueSize         int           `yaml:"queueSize,omitempty"`
}

// Address returns host:port of the scene endpoint.
func (s SceneConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// QueueFullPolicy decides what happens when a connection's outbound queue is full.
type QueueFullPolicy string

const (
	QueueFullDrop       QueueFullPolicy = "drop"
	QueueFullDisconnect QueueFullPolicy = "disconnect"
)

// ConnectionConfig tunes per-connection buffers.
type ConnectionConfig struct {
	ReadBufferSize    int             `yaml:"readBufferSize,omitempty"`
	OutboundQueueSize int             `yaml:"outboundQueueSize,omitempty"`
	QueueFullPolicy   QueueFullPolicy `yaml:"queueFullPolicy,omitempty"`
}

// AdminConfig defines the MCP admin endpoint.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// Address returns host:port of the admin endpoint.
func (a AdminConfig) Address() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// LoggingConfig selects the log level and an optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// Validate reports the first invalid setting.
func (c RelayConfig) Validate() error {
	if err := validatePort("listen.port", c.Listen.Port); err != nil {
		return err
	}
	if c.Scene.Host == "" {
		return fmt.Errorf("scene.host must not be empty")
	}
	if err := validatePort("scene.port", c.Scene.Port); err != nil {
		return err
	}
	if c.Scene.ReconnectInterval < 0 {
		return fmt.Errorf("scene.reconnectInterval must not be negative, got %s", c.Scene.ReconnectInterval)
	}
	if c.Scene.QueueSize <= 0 {
		return fmt.Errorf("scene.queueSize must be positive, got %d", c.Scene.QueueSize)
	}
	if c.Connections.ReadBufferSize <= 0 {
		return fmt.Errorf("connections.readBufferSize must be positive, got %d", c.Connections.ReadBufferSize)
	}
	if c.Connections.OutboundQueueSize <= 0 {
		return fmt.Errorf("connections.outboundQueueSize must be positive, got %d", c.Connections.OutboundQueueSize)
	}
	switch c.Connections.QueueFullPolicy {
	case QueueFullDrop, QueueFullDisconnect:
	default:
		return fmt.Errorf("connections.queueFullPolicy must be %q or %q, got %q", QueueFullDrop, QueueFullDisconnect, c.Connections.QueueFullPolicy)
	}
	if c.Admin.Enabled {
		if err := validatePort("admin.port", c.Admin.Port); err != nil {
			return err
		}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be between 0 and 65535, got %d", field, port)
	}
	return nil
}
