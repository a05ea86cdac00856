// Package config handles configuration loading for the control and agent nodes.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. A .env file in the working directory is loaded first. Any field
// missing from the file keeps its default.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the --config flag
//  2. Path from COVEN_CONTROL_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/coven/control.yaml (or ~/.config/coven/control.yaml)
//
// A missing file is not an error; defaults are used.
//
// # Environment Variable Expansion
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// # Duration Parsing
//
// Durations accept Go syntax ("5s", "250ms") or a bare number of milliseconds:
//
//	agent:
//	  retry_connection_delay: "5000"
//
// # Configuration Sections
//
// Control node:
//
//	server:
//	  port: 8888                  # agent listener
//	  http_addr: "127.0.0.1:9100" # health and metrics
//
// Agent node:
//
//	agent:
//	  server_ip: "127.0.0.1"
//	  server_port: 0              # 0 uses server.port
//	  retry_connection_delay: "5s"
//
// Key sizes (modulus bits, each prime gets half):
//
//	crypto:
//	  client_key_bits: 512
//	  server_key_bits: 1024
//
// Presentation:
//
//	ui:
//	  sleep_time: "2s"            # startup banner delay
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	  debug: true     # forces debug level
//
// Optional components:
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//	database:
//	  path: ""        # session journal, disabled when empty
//	tailscale:
//	  enabled: false
//	  hostname: "coven-control"
//	  auth_key: "${TS_AUTHKEY}"
package config
