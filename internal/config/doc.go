// Package config handles configuration loading for courier.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COURIER_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	presence:
//	  ping_interval: "30s"
//	  pong_timeout: "60s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/courier/courier.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${COURIER_JWT_SECRET}"  # at least 32 bytes
//
// Limits:
//
//	limits:
//	  max_message_bytes: 4096
//	  send_rps: 5
//	  send_burst: 10
//	  history_page_size: 50
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
