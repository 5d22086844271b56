// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/courier/lib/codec"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs and tests.
	Development Environment = "development"
	// Production is for long-running deployments.
	Production Environment = "production"
)

// TransportUDP is the only transport the binaries speak. The in-memory
// network is for tests and is wired directly, not through config.
const TransportUDP = "udp"

// Config is the master configuration for courier binaries.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Transport TransportConfig `yaml:"transport"`
	Messaging MessagingConfig `yaml:"messaging"`
	Chat      ChatConfig      `yaml:"chat"`
	Log       LogConfig       `yaml:"log"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Messaging *MessagingConfig `yaml:"messaging,omitempty"`
	Chat      *ChatConfig      `yaml:"chat,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// TransportConfig selects the datagram transport.
type TransportConfig struct {
	// Kind names the transport.
	// Default: udp
	Kind string `yaml:"kind"`

	// Listen is the address the server binds.
	// Default: 127.0.0.1:7400
	Listen string `yaml:"listen"`
}

// MessagingConfig tunes the reliable channel.
type MessagingConfig struct {
	// RetryTimeout is how long a send waits for an ack before
	// retransmitting, as a Go duration string.
	// Default: 20ms
	RetryTimeout string `yaml:"retry_timeout"`

	// Compression is "none", "lz4", or "zstd".
	// Default: none
	Compression string `yaml:"compression"`

	// CompressionThreshold is the smallest payload that is compressed.
	// Default: 512
	CompressionThreshold int `yaml:"compression_threshold"`
}

// ChatConfig configures the chat server and client.
type ChatConfig struct {
	// ServerAddress is where clients send requests.
	// Default: 127.0.0.1:7400
	ServerAddress string `yaml:"server_address"`

	// StatePath is the SQLite database holding room memberships.
	// Default: ${COURIER_STATE}/chat.db
	StatePath string `yaml:"state_path"`
}

// LogConfig configures the binaries' slog handler.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: debug (development), info (production)
	Level string `yaml:"level"`
}

// Default returns the default configuration, used as the base before
// the file is applied.
func Default() *Config {
	return &Config{
		Environment: Development,
		Transport: TransportConfig{
			Kind:   TransportUDP,
			Listen: "127.0.0.1:7400",
		},
		Messaging: MessagingConfig{
			RetryTimeout:         "20ms",
			Compression:          "none",
			CompressionThreshold: 512,
		},
		Chat: ChatConfig{
			ServerAddress: "127.0.0.1:7400",
			StatePath:     "${COURIER_STATE}/chat.db",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// Load loads configuration from the file named by COURIER_CONFIG. It
// fails if the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("COURIER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("COURIER_CONFIG environment variable not set; " +
			"set it to the path of your courier.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the override section
// for the configured environment, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// Resolve picks the configuration a binary runs with: the file at path
// if given, else the file named by COURIER_CONFIG if set, else the
// defaults with variables expanded.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv("COURIER_CONFIG") != "" {
		return Load()
	}
	cfg := Default()
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{Log: &LogConfig{Level: "info"}}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Transport != nil {
		if overrides.Transport.Kind != "" {
			c.Transport.Kind = overrides.Transport.Kind
		}
		if overrides.Transport.Listen != "" {
			c.Transport.Listen = overrides.Transport.Listen
		}
	}

	if overrides.Messaging != nil {
		if overrides.Messaging.RetryTimeout != "" {
			c.Messaging.RetryTimeout = overrides.Messaging.RetryTimeout
		}
		if overrides.Messaging.Compression != "" {
			c.Messaging.Compression = overrides.Messaging.Compression
		}
		if overrides.Messaging.CompressionThreshold != 0 {
			c.Messaging.CompressionThreshold = overrides.Messaging.CompressionThreshold
		}
	}

	if overrides.Chat != nil {
		if overrides.Chat.ServerAddress != "" {
			c.Chat.ServerAddress = overrides.Chat.ServerAddress
		}
		if overrides.Chat.StatePath != "" {
			c.Chat.StatePath = overrides.Chat.StatePath
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// address and path fields.
func (c *Config) expandVariables() {
	homeDir, _ := os.UserHomeDir()
	vars := map[string]string{
		"HOME":          homeDir,
		"COURIER_STATE": filepath.Join(homeDir, ".local", "state", "courier"),
	}
	if state := os.Getenv("COURIER_STATE"); state != "" {
		vars["COURIER_STATE"] = state
	}

	c.Transport.Listen = expandVars(c.Transport.Listen, vars)
	c.Chat.ServerAddress = expandVars(c.Chat.ServerAddress, vars)
	c.Chat.StatePath = expandVars(c.Chat.StatePath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided
// vars win over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	transportKinds := []string{TransportUDP}
	if !slices.Contains(transportKinds, c.Transport.Kind) {
		errs = append(errs, fmt.Errorf("transport.kind must be one of: %v", transportKinds))
	}
	if c.Transport.Listen == "" {
		errs = append(errs, fmt.Errorf("transport.listen is required"))
	}

	if _, err := c.RetryTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Compression(); err != nil {
		errs = append(errs, fmt.Errorf("messaging.compression: %w", err))
	}
	if c.Messaging.CompressionThreshold < 0 {
		errs = append(errs, fmt.Errorf("messaging.compression_threshold must not be negative"))
	}

	if c.Chat.ServerAddress == "" {
		errs = append(errs, fmt.Errorf("chat.server_address is required"))
	}
	if c.Chat.StatePath == "" {
		errs = append(errs, fmt.Errorf("chat.state_path is required"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RetryTimeout parses messaging.retry_timeout.
func (c *Config) RetryTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Messaging.RetryTimeout)
	if err != nil {
		return 0, fmt.Errorf("messaging.retry_timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("messaging.retry_timeout must be positive, got %s", timeout)
	}
	return timeout, nil
}

// Compression parses messaging.compression.
func (c *Config) Compression() (codec.Compression, error) {
	return codec.ParseCompression(c.Messaging.Compression)
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// EnsureStateDirectory creates the directory holding chat.state_path.
func (c *Config) EnsureStateDirectory() error {
	directory := filepath.Dir(c.Chat.StatePath)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
