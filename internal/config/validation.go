package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// maxVethPrefix leaves room for eight hex characters within IFNAMSIZ.
const maxVethPrefix = unix.IFNAMSIZ - 1 - 8

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "warning": true, "error": true,
	"fatal": true, "panic": true,
}

// Validate validates the entire configuration.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := c.validateLog(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	for name, p := range map[string]string{
		"state_dir": c.Paths.StateDir,
		"netns_dir": c.Paths.NetnsDir,
	} {
		if p == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%s must be absolute, got %q", name, p)
		}
	}
	return nil
}

func (c *Config) validateNetwork() error {
	prefix := c.Network.VethPrefix
	if prefix == "" {
		return fmt.Errorf("veth_prefix cannot be empty")
	}
	if len(prefix) > maxVethPrefix {
		return fmt.Errorf("veth_prefix: at most %d characters, got %q", maxVethPrefix, prefix)
	}
	if strings.ContainsAny(prefix, "/:% \t\n") {
		return fmt.Errorf("veth_prefix: %q is not a valid interface name prefix", prefix)
	}
	return nil
}

func (c *Config) validateLog() error {
	if !logLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("level: unknown level %q", c.Log.Level)
	}
	return nil
}

// EnsureStateDir creates the state directory if needed and checks that it
// is writable.
func (c *Config) EnsureStateDir() error {
	return ensureDirWritable(c.Paths.StateDir, "state_dir")
}

// Helper functions

func canonicalizePath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	resolved, err := filepath.EvalSymlinks(cleaned)
	if err == nil {
		return resolved, nil
	}
	if os.IsNotExist(err) {
		return cleaned, nil
	}
	return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
}

func ensureDirWritable(path, name string) error {
	canonical, err := canonicalizePath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	info, statErr := os.Stat(canonical)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return fmt.Errorf("%s: cannot access %s: %w", name, canonical, statErr)
		}
		if err := os.MkdirAll(canonical, 0o750); err != nil {
			return fmt.Errorf("%s: cannot create directory %s: %w", name, canonical, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("%s: not a directory: %s", name, canonical)
	}

	if err := unix.Access(canonical, unix.W_OK); err != nil {
		return fmt.Errorf("%s: not writable: %s", name, canonical)
	}
	return nil
}
