// Package config handles configuration loading for fanpulse.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Keys missing from the file keep the values from Default, and the
// result is validated before use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FANPULSE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/fanpulse/fanpulse.yaml
//  3. ~/.config/fanpulse/fanpulse.yaml
//
// A path ending in .toml is decoded with BurntSushi/toml; anything else is
// decoded as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${FANPULSE_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	mcp:
//	  tool_timeout: "30s"
//	  session_ttl: "24h"
//	  idempotency_ttl: "10m"
//
// # Sections
//
//	server    - HTTP and gRPC health listen addresses, shutdown timeout
//	tailscale - optional tsnet listener (hostname, auth key, HTTPS, Funnel)
//	database  - SQLite path, driver and demo seeding
//	auth      - JWT secret for bearer tokens on /api and /mcp
//	mcp       - auth policy, pre-shared tokens, rate limits, timeouts
//	insights  - default lookback, recommendation count, promotion length
//	logging   - level and text/json format
//	metrics   - Prometheus endpoint
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  path: "/var/lib/fanpulse/fanpulse.db"
//	  seed: true
//	mcp:
//	  tokens:
//	    - name: "marketing-bot"
//	      token: "${FANPULSE_MARKETING_TOKEN}"
//	      capabilities: ["marketing"]
//	logging:
//	  level: "debug"
package config
