// Package config provides centralized configuration management for bridgenet.
// Configuration is loaded from a JSON file at /etc/bridgenet/config.json
// (overridable via BRIDGENET_CONFIG environment variable).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DefaultConfigPath is the default location for the config file
	DefaultConfigPath = "/etc/bridgenet/config.json"

	// ConfigEnvVar is the environment variable to override config file location
	ConfigEnvVar = "BRIDGENET_CONFIG"

	// dbFile is the attachment record database inside StateDir.
	dbFile = "bridgenet.db"
)

// Config is the root configuration structure
type Config struct {
	Paths   PathsConfig   `json:"paths"`
	Network NetworkConfig `json:"network"`
	Log     LogConfig     `json:"log"`
}

// PathsConfig defines filesystem paths for bridgenet
type PathsConfig struct {
	StateDir string `json:"state_dir"` // Attachment records
	NetnsDir string `json:"netns_dir"` // Where bare namespace names are resolved
}

// NetworkConfig defines how interfaces are created
type NetworkConfig struct {
	// VethPrefix prefixes generated host veth names. Eight hex characters are
	// appended, so it may be at most 7 characters long.
	VethPrefix string `json:"veth_prefix"`

	// RecordAttachments enables the attachment record database.
	RecordAttachments *bool `json:"record_attachments,omitempty"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level string `json:"level"` // trace, debug, info, warn, error
}

// DBPath returns the attachment record database location.
func (p *PathsConfig) DBPath() string {
	return filepath.Join(p.StateDir, dbFile)
}

// RecordsEnabled reports whether attachments should be persisted.
func (n *NetworkConfig) RecordsEnabled() bool {
	return n.RecordAttachments == nil || *n.RecordAttachments
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.Mutex
	errConfig    error
)

// Reset clears the cached global config, forcing the next Get() call to reload.
// This is intended for testing only. Callers must ensure no concurrent Get() calls
// are in progress when calling Reset().
func Reset() {
	configMu.Lock()
	defer configMu.Unlock()
	globalConfig = nil
	errConfig = nil
	configOnce = sync.Once{}
}

// Get returns the global config, loading it on first call.
func Get() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, errConfig = Load()
	})
	return globalConfig, errConfig
}

// Load loads configuration from BRIDGENET_CONFIG or /etc/bridgenet/config.json.
// A file named by the environment must exist; a missing default file yields
// the defaults.
func Load() (*Config, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return LoadFrom(configPath)
	}

	cfg, err := LoadFrom(DefaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFrom loads configuration from a specific path.
// Returns error if file doesn't exist or is invalid.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w (ensure it's valid JSON)", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			StateDir: "/var/lib/bridgenet",
			NetnsDir: "/var/run/netns",
		},
		Network: NetworkConfig{
			VethPrefix: "veth",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills in default values for any empty fields
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Paths.StateDir == "" {
		c.Paths.StateDir = defaults.Paths.StateDir
	}
	if c.Paths.NetnsDir == "" {
		c.Paths.NetnsDir = defaults.Paths.NetnsDir
	}
	if c.Network.VethPrefix == "" {
		c.Network.VethPrefix = defaults.Network.VethPrefix
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}
