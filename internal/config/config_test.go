// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "control.yaml", `
server:
  port: 9999
  http_addr: "127.0.0.1:9100"

agent:
  server_ip: "10.0.0.5"
  retry_connection_delay: "2s"

crypto:
  client_key_bits: 256
  server_key_bits: 2048

ui:
  sleep_time: "0s"

logging:
  level: "debug"
  format: "json"
  debug: false

metrics:
  enabled: true
  path: "/metrics"

database:
  path: "./journal.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9100" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9100")
	}
	if cfg.Agent.ServerIP != "10.0.0.5" {
		t.Errorf("Agent.ServerIP = %q, want %q", cfg.Agent.ServerIP, "10.0.0.5")
	}
	if cfg.Agent.RetryConnectionDelay != 2*time.Second {
		t.Errorf("Agent.RetryConnectionDelay = %v, want %v", cfg.Agent.RetryConnectionDelay, 2*time.Second)
	}
	if cfg.Crypto.ClientKeyBits != 256 || cfg.Crypto.ServerKeyBits != 2048 {
		t.Errorf("Crypto = %+v, want client 256 server 2048", cfg.Crypto)
	}
	if cfg.UI.SleepTime != 0 {
		t.Errorf("UI.SleepTime = %v, want 0", cfg.UI.SleepTime)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.Debug {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Database.Path != "./journal.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if got := cfg.DialAddr(); got != "10.0.0.5:9999" {
		t.Errorf("DialAddr() = %q, want %q", got, "10.0.0.5:9999")
	}
}

func TestLoad_DefaultsForMissingFields(t *testing.T) {
	configPath := writeConfig(t, "control.yaml", `
logging:
  level: "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultServerPort)
	}
	if cfg.Agent.ServerIP != DefaultServerIP {
		t.Errorf("Agent.ServerIP = %q, want %q", cfg.Agent.ServerIP, DefaultServerIP)
	}
	if cfg.Agent.RetryConnectionDelay != DefaultRetryDelay {
		t.Errorf("Agent.RetryConnectionDelay = %v, want %v", cfg.Agent.RetryConnectionDelay, DefaultRetryDelay)
	}
	if cfg.Crypto.ClientKeyBits != DefaultClientKeyBits || cfg.Crypto.ServerKeyBits != DefaultServerKeyBits {
		t.Errorf("Crypto = %+v", cfg.Crypto)
	}
	if cfg.UI.SleepTime != DefaultSleepTime {
		t.Errorf("UI.SleepTime = %v, want %v", cfg.UI.SleepTime, DefaultSleepTime)
	}
	if !cfg.Logging.Debug {
		t.Error("Logging.Debug = false, want default true")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "control.toml", `
[server]
port = 7000

[agent]
server_ip = "192.168.0.10"
server_port = 7001
retry_connection_delay = "250ms"

[crypto]
client_key_bits = 128
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Agent.RetryConnectionDelay != 250*time.Millisecond {
		t.Errorf("Agent.RetryConnectionDelay = %v", cfg.Agent.RetryConnectionDelay)
	}
	if cfg.Crypto.ClientKeyBits != 128 {
		t.Errorf("Crypto.ClientKeyBits = %d", cfg.Crypto.ClientKeyBits)
	}
	if cfg.Crypto.ServerKeyBits != DefaultServerKeyBits {
		t.Errorf("Crypto.ServerKeyBits = %d, want default", cfg.Crypto.ServerKeyBits)
	}
	if got := cfg.DialAddr(); got != "192.168.0.10:7001" {
		t.Errorf("DialAddr() = %q", got)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CONTROL_HOST", "172.16.0.1")
	t.Setenv("TEST_TS_KEY", "tskey-from-env")

	configPath := writeConfig(t, "control.yaml", `
agent:
  server_ip: "${TEST_CONTROL_HOST}"
tailscale:
  enabled: true
  hostname: "control"
  auth_key: "${TEST_TS_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.ServerIP != "172.16.0.1" {
		t.Errorf("Agent.ServerIP = %q, want %q", cfg.Agent.ServerIP, "172.16.0.1")
	}
	if cfg.Tailscale.AuthKey != "tskey-from-env" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-from-env")
	}
}

func TestLoad_MillisecondDurations(t *testing.T) {
	configPath := writeConfig(t, "control.yaml", `
agent:
  retry_connection_delay: "5000"
ui:
  sleep_time: "1500"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.RetryConnectionDelay != 5*time.Second {
		t.Errorf("Agent.RetryConnectionDelay = %v, want 5s", cfg.Agent.RetryConnectionDelay)
	}
	if cfg.UI.SleepTime != 1500*time.Millisecond {
		t.Errorf("UI.SleepTime = %v, want 1.5s", cfg.UI.SleepTime)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad duration", "agent:\n  retry_connection_delay: \"soon\"\n", "retry_connection_delay"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"tiny key", "crypto:\n  server_key_bits: 2\n", "server_key_bits"},
		{"key below byte range", "crypto:\n  client_key_bits: 8\n", "client_key_bits must be at least 16"},
		{"metrics without http addr", "metrics:\n  enabled: true\n", "http_addr"},
		{"tailscale without hostname", "tailscale:\n  enabled: true\n", "tailscale.hostname"},
		{"bad log format", "logging:\n  format: \"xml\"\n", "logging.format"},
		{"invalid yaml", "server: [\n", "parsing config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "control.yaml", tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
	if got := cfg.DialAddr(); got != "127.0.0.1:8888" {
		t.Errorf("DialAddr() = %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	if got := ResolvePath("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("ResolvePath(flag) = %q", got)
	}
	if got := ResolvePath(""); got != filepath.Join("/xdg", "coven", "control.yaml") {
		t.Errorf("ResolvePath(xdg) = %q", got)
	}

	t.Setenv(EnvConfigPath, "/etc/coven/control.toml")
	if got := ResolvePath(""); got != "/etc/coven/control.toml" {
		t.Errorf("ResolvePath(env) = %q", got)
	}
	if got := ResolvePath("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("flag should win over env, got %q", got)
	}
}
