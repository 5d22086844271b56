// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/courier/lib/codec"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courier.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Transport.Kind != TransportUDP {
		t.Errorf("expected transport.kind=udp, got %s", cfg.Transport.Kind)
	}
	timeout, err := cfg.RetryTimeout()
	if err != nil {
		t.Fatalf("RetryTimeout: %v", err)
	}
	if timeout != 20*time.Millisecond {
		t.Errorf("expected retry_timeout=20ms, got %s", timeout)
	}
}

func TestLoad_RequiresCourierConfig(t *testing.T) {
	t.Setenv("COURIER_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when COURIER_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "COURIER_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithCourierConfig(t *testing.T) {
	path := writeConfig(t, `
transport:
  listen: 0.0.0.0:9000
messaging:
  retry_timeout: 50ms
  compression: zstd
chat:
  server_address: chat.example:9000
  state_path: /var/lib/courier/chat.db
`)
	t.Setenv("COURIER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Transport.Listen != "0.0.0.0:9000" {
		t.Errorf("expected listen=0.0.0.0:9000, got %s", cfg.Transport.Listen)
	}
	if cfg.Transport.Kind != TransportUDP {
		t.Errorf("expected unset kind to keep default udp, got %s", cfg.Transport.Kind)
	}
	if timeout, _ := cfg.RetryTimeout(); timeout != 50*time.Millisecond {
		t.Errorf("expected retry_timeout=50ms, got %s", timeout)
	}
	if compression, _ := cfg.Compression(); compression != codec.CompressionZstd {
		t.Errorf("expected compression=zstd, got %s", compression)
	}
	if cfg.Messaging.CompressionThreshold != 512 {
		t.Errorf("expected default threshold 512, got %d", cfg.Messaging.CompressionThreshold)
	}
	if cfg.Chat.StatePath != "/var/lib/courier/chat.db" {
		t.Errorf("expected state_path from file, got %s", cfg.Chat.StatePath)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("COURIER_STATE", "/srv/courier")
	t.Setenv("COURIER_CONFIG", "")

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve without a file: %v", err)
	}
	if cfg.Chat.StatePath != "/srv/courier/chat.db" {
		t.Errorf("state_path = %s, want expanded default", cfg.Chat.StatePath)
	}

	explicit := writeConfig(t, "log:\n  level: warn\n")
	fromEnvironment := writeConfig(t, "log:\n  level: error\n")
	t.Setenv("COURIER_CONFIG", fromEnvironment)

	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve from COURIER_CONFIG: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %s, want error from COURIER_CONFIG", cfg.Log.Level)
	}

	cfg, err = Resolve(explicit)
	if err != nil {
		t.Fatalf("Resolve with a path: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %s, want warn from the explicit path", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeConfig(t, "transport: [unterminated")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
messaging:
  retry_timeout: 20ms
production:
  messaging:
    retry_timeout: 100ms
    compression: lz4
  chat:
    server_address: prod.example:7400
development:
  messaging:
    retry_timeout: 1ms
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Messaging.RetryTimeout != "100ms" {
		t.Errorf("expected production retry_timeout=100ms, got %s", cfg.Messaging.RetryTimeout)
	}
	if cfg.Messaging.Compression != "lz4" {
		t.Errorf("expected production compression=lz4, got %s", cfg.Messaging.Compression)
	}
	if cfg.Chat.ServerAddress != "prod.example:7400" {
		t.Errorf("expected production server_address, got %s", cfg.Chat.ServerAddress)
	}
	// An explicit production section replaces the built-in production
	// defaults, so the log level keeps its base value.
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestProductionDefaults(t *testing.T) {
	path := writeConfig(t, "environment: production\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		t.Fatalf("LogLevel: %v", err)
	}
	if level != slog.LevelInfo {
		t.Errorf("expected production log level info, got %s", level)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("COURIER_STATE", "/srv/courier")
	t.Setenv("COURIER_TEST_PORT", "7777")

	path := writeConfig(t, `
transport:
  listen: 127.0.0.1:${COURIER_TEST_PORT}
chat:
  server_address: ${COURIER_TEST_HOST:-localhost}:${COURIER_TEST_PORT}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Transport.Listen != "127.0.0.1:7777" {
		t.Errorf("listen = %s, want 127.0.0.1:7777", cfg.Transport.Listen)
	}
	if cfg.Chat.ServerAddress != "localhost:7777" {
		t.Errorf("server_address = %s, want localhost:7777", cfg.Chat.ServerAddress)
	}
	if cfg.Chat.StatePath != "/srv/courier/chat.db" {
		t.Errorf("state_path = %s, want /srv/courier/chat.db", cfg.Chat.StatePath)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input string
		vars  map[string]string
		want  string
	}{
		{"plain", nil, "plain"},
		{"${A}/x", map[string]string{"A": "a"}, "a/x"},
		{"${COURIER_UNSET_VARIABLE:-fallback}", nil, "fallback"},
		{"${COURIER_UNSET_VARIABLE}", nil, ""},
		{"${A:-unused}", map[string]string{"A": "set"}, "set"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, test.vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"bad transport", func(c *Config) { c.Transport.Kind = "tcp" }, "transport.kind"},
		{"missing listen", func(c *Config) { c.Transport.Listen = "" }, "transport.listen"},
		{"bad retry timeout", func(c *Config) { c.Messaging.RetryTimeout = "soon" }, "messaging.retry_timeout"},
		{"zero retry timeout", func(c *Config) { c.Messaging.RetryTimeout = "0s" }, "must be positive"},
		{"bad compression", func(c *Config) { c.Messaging.Compression = "gzip" }, "messaging.compression"},
		{"negative threshold", func(c *Config) { c.Messaging.CompressionThreshold = -1 }, "compression_threshold"},
		{"missing server", func(c *Config) { c.Chat.ServerAddress = "" }, "chat.server_address"},
		{"missing state", func(c *Config) { c.Chat.StatePath = "" }, "chat.state_path"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate error = %v, want one mentioning %q", err, test.wantErr)
			}
		})
	}
}

func TestEnsureStateDirectory(t *testing.T) {
	cfg := Default()
	cfg.Chat.StatePath = filepath.Join(t.TempDir(), "nested", "dir", "chat.db")
	if err := cfg.EnsureStateDirectory(); err != nil {
		t.Fatalf("EnsureStateDirectory: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(cfg.Chat.StatePath)); err != nil || !info.IsDir() {
		t.Fatalf("state directory not created: %v", err)
	}
}
