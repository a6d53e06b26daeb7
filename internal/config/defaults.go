package config

import "time"

const (
	DefaultListenPort        = 5555
	DefaultSceneHost         = "localhost"
	DefaultScenePort         = 6666
	DefaultReconnectInterval = 2 * time.Second
	DefaultSceneQueueSize    = 256
	DefaultReadBufferSize    = 64 * 1024
	DefaultOutboundQueueSize = 64
	DefaultAdminHost         = "localhost"
	DefaultAdminPort         = 8095
)

// GetDefaultConfig returns the configuration used when no file overrides it.
// The ports match the historical config.ini defaults (relay 5555, scene 6666).
func GetDefaultConfig() RelayConfig {
	return RelayConfig{
		Listen: ListenConfig{
			Port: DefaultListenPort,
		},
		Scene: SceneConfig{
			Host:              DefaultSceneHost,
			Port:              DefaultScenePort,
			ReconnectInterval: DefaultReconnectInterval,
			QueueSize:         DefaultSceneQueueSize,
		},
		Connections: ConnectionConfig{
			ReadBufferSize:    DefaultReadBufferSize,
			OutboundQueueSize: DefaultOutboundQueueSize,
			QueueFullPolicy:   QueueFullDrop,
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    DefaultAdminHost,
			Port:    DefaultAdminPort,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}
