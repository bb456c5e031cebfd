// Package config provides the configuration structure for the module
// tooling, matching the schema of configs/fipsmod.yaml.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backends for the persisted trust state.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config represents the full fipsmod configuration file.
type Config struct {
	// Trust state persistence
	StateBackend string `yaml:"state_backend"`
	StatePath    string `yaml:"state_path"`

	// Module image covered by the integrity digest. Empty selects the
	// running executable.
	ImagePath string `yaml:"image_path,omitempty"`

	// IntegrityKey is the hex-encoded HMAC key for the integrity digests.
	// Empty selects the compiled-in key. Changing it invalidates every
	// digest in the existing trust record.
	IntegrityKey string `yaml:"integrity_key,omitempty"`

	// Control socket served by the daemon
	SocketPath string `yaml:"socket_path,omitempty"`

	NodeName string `yaml:"node_name,omitempty"`

	SelfTest SelfTestConfig `yaml:"selftest"`

	LogLevel string `yaml:"loglevel"`
	LogFile  string `yaml:"logfile,omitempty"`
}

// SelfTestConfig holds self-test run settings.
type SelfTestConfig struct {
	OnStart       bool   `yaml:"self-test-on-start"`
	FailOnFailure bool   `yaml:"fail-on-self-test-failure"`
	Output        string `yaml:"self-test-output,omitempty"`
	JournalRuns   int    `yaml:"journal-runs,omitempty"`
}

// NewDefaultConfig returns a Config populated with safe defaults.
func NewDefaultConfig() *Config {
	return &Config{
		StateBackend: BackendSQLite,
		StatePath:    "/var/lib/fipsmod/trust.db",
		SocketPath:   "/run/fipsmod.sock",
		SelfTest: SelfTestConfig{
			OnStart:       true,
			FailOnFailure: true,
			Output:        "/var/log/fipsmod/selftest.json",
			JournalRuns:   50,
		},
		LogLevel: "info",
	}
}

// IntegrityKeyBytes decodes the configured integrity key. An empty
// setting returns nil, selecting the compiled-in key.
func (c *Config) IntegrityKeyBytes() ([]byte, error) {
	s := strings.TrimSpace(c.IntegrityKey)
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("integrity_key: %w", err)
	}
	return key, nil
}

// ReadConfig loads and validates the configuration at path. Fields absent
// from the file keep their defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// WriteConfig writes cfg to path, creating parent directories as needed.
func WriteConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
