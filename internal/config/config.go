// ABOUTME: Configuration loading and parsing for fanpulse
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength is the shortest accepted auth.jwt_secret
const MinJWTSecretLength = 32

// Config represents the complete fanpulse configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	MCP       MCPConfig       `yaml:"mcp" toml:"mcp"`
	Insights  InsightsConfig  `yaml:"insights" toml:"insights"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr" toml:"grpc_addr"` // gRPC health service; empty disables it
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS on :443 with tailnet certificates
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	Seed   bool   `yaml:"seed" toml:"seed"`     // Load the demo dataset into an empty database at startup
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" toml:"jwt_secret"`
	RequireAPIAuth bool   `yaml:"require_api_auth" toml:"require_api_auth"`
}

// MCPToken is a pre-shared opaque token for /mcp/<token> access
type MCPToken struct {
	Name         string   `yaml:"name" toml:"name"`
	Token        string   `yaml:"token" toml:"token"`
	Capabilities []string `yaml:"capabilities" toml:"capabilities"`
}

// MCPConfig holds MCP endpoint configuration
type MCPConfig struct {
	RequireAuth         bool       `yaml:"require_auth" toml:"require_auth"`
	DefaultCapabilities []string   `yaml:"default_capabilities" toml:"default_capabilities"`
	Tokens              []MCPToken `yaml:"tokens" toml:"tokens"`

	// RateLimit is requests per second per caller; zero disables limiting
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`

	ToolTimeout    time.Duration `yaml:"-" toml:"-"`
	SessionTTL     time.Duration `yaml:"-" toml:"-"`
	IdempotencyTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ToolTimeoutRaw    string `yaml:"tool_timeout" toml:"tool_timeout"`
	SessionTTLRaw     string `yaml:"session_ttl" toml:"session_ttl"`
	IdempotencyTTLRaw string `yaml:"idempotency_ttl" toml:"idempotency_ttl"`
}

// InsightsConfig holds defaults for the insight operations
type InsightsConfig struct {
	DefaultLookbackDays       int `yaml:"default_lookback_days" toml:"default_lookback_days"`
	DefaultMaxRecommendations int `yaml:"default_max_recommendations" toml:"default_max_recommendations"`
	PromotionDays             int `yaml:"promotion_days" toml:"promotion_days"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration with every default applied. dataDir holds
// the database file.
func Default(dataDir string) *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "127.0.0.1:8080",
			GRPCAddr:           "127.0.0.1:50051",
			ShutdownTimeoutRaw: "10s",
		},
		Tailscale: TailscaleConfig{Hostname: "fanpulse"},
		Database: DatabaseConfig{
			Path:   filepath.Join(dataDir, "fanpulse.db"),
			Driver: "sqlite",
		},
		MCP: MCPConfig{
			DefaultCapabilities: []string{"fans", "merch", "marketing"},
			RateLimit:           10,
			RateBurst:           20,
			ToolTimeoutRaw:      "30s",
			SessionTTLRaw:       "24h",
			IdempotencyTTLRaw:   "10m",
		},
		Insights: InsightsConfig{
			DefaultLookbackDays:       90,
			DefaultMaxRecommendations: 5,
			PromotionDays:             30,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Path returns the path to the config file.
// Priority: FANPULSE_CONFIG env var > XDG_CONFIG_HOME/fanpulse/fanpulse.yaml > ~/.config/fanpulse/fanpulse.yaml
func Path() string {
	if envPath := os.Getenv("FANPULSE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "fanpulse.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fanpulse", "fanpulse.yaml")
}

// DataPath returns the fanpulse data directory.
// Priority: XDG_DATA_HOME/fanpulse > ~/.local/share/fanpulse
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "fanpulse")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes configuration bytes over the defaults, then parses
// durations and validates the result.
func Parse(data []byte, isTOML bool) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default(DataPath())
	if isTOML {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Marshal renders cfg as YAML, the format written by `fanpulse init`.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.RequireAPIAuth && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.require_api_auth is set")
	}
	if c.MCP.RequireAuth && c.Auth.JWTSecret == "" && len(c.MCP.Tokens) == 0 {
		return fmt.Errorf("mcp.require_auth needs auth.jwt_secret or mcp.tokens")
	}

	seen := make(map[string]bool, len(c.MCP.Tokens))
	for i, tok := range c.MCP.Tokens {
		if tok.Name == "" {
			return fmt.Errorf("mcp.tokens[%d].name is required", i)
		}
		if len(tok.Token) < 16 {
			return fmt.Errorf("mcp.tokens[%d].token must be at least 16 characters", i)
		}
		if strings.Contains(tok.Token, "/") {
			return fmt.Errorf("mcp.tokens[%d].token must not contain '/'", i)
		}
		if seen[tok.Token] {
			return fmt.Errorf("mcp.tokens[%d].token is a duplicate", i)
		}
		seen[tok.Token] = true
	}

	if c.MCP.RateLimit < 0 {
		return fmt.Errorf("mcp.rate_limit must not be negative")
	}
	if c.MCP.RateLimit > 0 && c.MCP.RateBurst < 1 {
		return fmt.Errorf("mcp.rate_burst must be at least 1 when rate limiting is enabled")
	}

	if c.Insights.DefaultLookbackDays < 0 || c.Insights.DefaultMaxRecommendations < 0 || c.Insights.PromotionDays < 0 {
		return fmt.Errorf("insights values must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"mcp.tool_timeout", cfg.MCP.ToolTimeoutRaw, &cfg.MCP.ToolTimeout},
		{"mcp.session_ttl", cfg.MCP.SessionTTLRaw, &cfg.MCP.SessionTTL},
		{"mcp.idempotency_ttl", cfg.MCP.IdempotencyTTLRaw, &cfg.MCP.IdempotencyTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("parsing %s %q: must not be negative", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
