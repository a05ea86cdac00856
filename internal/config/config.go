// ABOUTME: Configuration loading and parsing for the control and agent nodes
// ABOUTME: Supports YAML or TOML files with .env loading, env var expansion and duration parsing

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults match the historical control-node settings.
const (
	DefaultServerPort    = 8888
	DefaultServerIP      = "127.0.0.1"
	DefaultRetryDelay    = 5 * time.Second
	DefaultClientKeyBits = 512
	DefaultServerKeyBits = 1024
	DefaultSleepTime     = 2 * time.Second

	// MinKeyBits is the smallest accepted modulus size.
	MinKeyBits = 16
)

// Config represents the complete configuration for both node binaries
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`
	Crypto    CryptoConfig    `yaml:"crypto" toml:"crypto"`
	UI        UIConfig        `yaml:"ui" toml:"ui"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
}

// ServerConfig holds control node listener configuration
type ServerConfig struct {
	Port     int    `yaml:"port" toml:"port"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"` // health and metrics
}

// AgentConfig holds agent node dialing configuration
type AgentConfig struct {
	ServerIP   string `yaml:"server_ip" toml:"server_ip"`
	ServerPort int    `yaml:"server_port" toml:"server_port"` // 0 means server.port

	RetryConnectionDelay    time.Duration `yaml:"-" toml:"-"`
	RetryConnectionDelayRaw string        `yaml:"retry_connection_delay" toml:"retry_connection_delay"`
}

// CryptoConfig holds the modulus size each side generates its own key with
type CryptoConfig struct {
	ClientKeyBits int `yaml:"client_key_bits" toml:"client_key_bits"`
	ServerKeyBits int `yaml:"server_key_bits" toml:"server_key_bits"`
}

// UIConfig holds presentation-only settings
type UIConfig struct {
	SleepTime    time.Duration `yaml:"-" toml:"-"`
	SleepTimeRaw string        `yaml:"sleep_time" toml:"sleep_time"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Debug  bool   `yaml:"debug" toml:"debug"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// DatabaseConfig holds the optional session journal location
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration for the control listener
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// Default returns a Config populated with the historical defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultServerPort},
		Agent: AgentConfig{
			ServerIP:                DefaultServerIP,
			RetryConnectionDelay:    DefaultRetryDelay,
			RetryConnectionDelayRaw: DefaultRetryDelay.String(),
		},
		Crypto: CryptoConfig{
			ClientKeyBits: DefaultClientKeyBits,
			ServerKeyBits: DefaultServerKeyBits,
		},
		UI: UIConfig{
			SleepTime:    DefaultSleepTime,
			SleepTimeRaw: DefaultSleepTime.String(),
		},
		Logging: LoggingConfig{Level: "info", Format: "text", Debug: true},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file in the working directory is loaded first if present.
// Environment variables in the format ${VAR_NAME} are expanded.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Unset fields keep their Default values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
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

// EnvConfigPath names the environment variable consulted by ResolvePath.
const EnvConfigPath = "COVEN_CONTROL_CONFIG"

// ResolvePath picks the config file location: an explicit flag value wins,
// then $COVEN_CONTROL_CONFIG, then $XDG_CONFIG_HOME/coven/control.yaml
// (falling back to ~/.config when XDG_CONFIG_HOME is unset).
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "control.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "coven", "control.yaml")
}

// LoadOrDefault behaves like Load but returns Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = godotenv.Load()
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Agent.ServerPort < 0 || c.Agent.ServerPort > 65535 {
		return fmt.Errorf("agent.server_port %d out of range", c.Agent.ServerPort)
	}
	if c.Agent.ServerIP == "" {
		return fmt.Errorf("agent.server_ip is required")
	}
	if c.Agent.RetryConnectionDelay < 0 {
		return fmt.Errorf("agent.retry_connection_delay must not be negative")
	}

	// Smaller moduli cannot carry every byte value through the codec.
	if c.Crypto.ClientKeyBits < MinKeyBits {
		return fmt.Errorf("crypto.client_key_bits must be at least %d, got %d", MinKeyBits, c.Crypto.ClientKeyBits)
	}
	if c.Crypto.ServerKeyBits < MinKeyBits {
		return fmt.Errorf("crypto.server_key_bits must be at least %d, got %d", MinKeyBits, c.Crypto.ServerKeyBits)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	return nil
}

// DialAddr returns the host:port an agent dials.
func (c *Config) DialAddr() string {
	port := c.Agent.ServerPort
	if port == 0 {
		port = c.Server.Port
	}
	return net.JoinHostPort(c.Agent.ServerIP, strconv.Itoa(port))
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.RetryConnectionDelayRaw != "" {
		cfg.Agent.RetryConnectionDelay, err = parseDuration(cfg.Agent.RetryConnectionDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry_connection_delay %q: %w", cfg.Agent.RetryConnectionDelayRaw, err)
		}
	}

	if cfg.UI.SleepTimeRaw != "" {
		cfg.UI.SleepTime, err = parseDuration(cfg.UI.SleepTimeRaw)
		if err != nil {
			return fmt.Errorf("parsing sleep_time %q: %w", cfg.UI.SleepTimeRaw, err)
		}
	}

	return nil
}

// parseDuration accepts Go duration syntax or a bare integer in milliseconds.
func parseDuration(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}
