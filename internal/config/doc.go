// Package config provides configuration management for rcarelay.
//
// Configuration is loaded from multiple sources and merged in order, with
// later sources overriding earlier ones:
//
//  1. Default configuration (compiled in, see GetDefaultConfig)
//  2. User configuration (~/.config/rcarelay/config.yaml)
//  3. Project configuration (./.rcarelay/config.yaml)
//
// LoadConfigFromPath replaces the user and project layers with one file.
// Only keys present in a file override the layer below it.
//
// # Configuration Structure
//
//	listen:
//	  host: ""            # empty binds all interfaces
//	  port: 5555
//	scene:
//	  host: localhost
//	  port: 6666
//	  reconnectInterval: 2s
//	  queueSize: 256
//	connections:
//	  readBufferSize: 65536
//	  outboundQueueSize: 64
//	  queueFullPolicy: drop   # or "disconnect"
//	admin:
//	  enabled: false
//	  host: localhost
//	  port: 8095
//	logging:
//	  level: info
//	  file: /var/log/rcarelay.log
//	  maxSizeMB: 10
//
// # Environment Variable Expansion
//
// Values support ${VAR} and ${VAR:-default} references, expanded before the
// YAML is parsed.
package config
