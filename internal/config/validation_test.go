//go:build linux

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "seven character prefix",
			mutate: func(c *Config) { c.Network.VethPrefix = "bridgen" },
		},
		{
			name:    "prefix too long",
			mutate:  func(c *Config) { c.Network.VethPrefix = "bridgenet" },
			wantErr: "network: veth_prefix: at most 7 characters",
		},
		{
			name:    "prefix with slash",
			mutate:  func(c *Config) { c.Network.VethPrefix = "v/e" },
			wantErr: "not a valid interface name prefix",
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.Network.VethPrefix = "" },
			wantErr: "veth_prefix cannot be empty",
		},
		{
			name:    "relative state dir",
			mutate:  func(c *Config) { c.Paths.StateDir = "state" },
			wantErr: "paths: state_dir must be absolute",
		},
		{
			name:    "empty netns dir",
			mutate:  func(c *Config) { c.Paths.NetnsDir = "" },
			wantErr: "paths: netns_dir cannot be empty",
		},
		{
			name:   "upper case level",
			mutate: func(c *Config) { c.Log.Level = "DEBUG" },
		},
		{
			name:    "unknown level",
			mutate:  func(c *Config) { c.Log.Level = "chatty" },
			wantErr: `log: level: unknown level "chatty"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalizePath(t *testing.T) {
	tmpDir := t.TempDir()

	realDir := filepath.Join(tmpDir, "real")
	if err := os.MkdirAll(realDir, 0750); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(tmpDir, "link")
	if err := os.Symlink(realDir, link); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "cleans dot-dot paths", path: filepath.Join(realDir, "..", "real"), want: realDir},
		{name: "resolves symlinks", path: link, want: realDir},
		{name: "keeps non-existent path", path: filepath.Join(tmpDir, "missing", "."), want: filepath.Join(tmpDir, "missing")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalizePath(tt.path)
			if err != nil {
				t.Fatalf("canonicalizePath() error = %v", err)
			}
			// TempDir itself may sit behind a symlink (macOS /var), so compare
			// against the resolved expectation.
			want, _ := canonicalizePath(tt.want)
			if got != want {
				t.Errorf("canonicalizePath() = %s, want %s", got, want)
			}
		})
	}
}

func TestEnsureStateDir(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state", "nested")

		if err := cfg.EnsureStateDir(); err != nil {
			t.Fatalf("EnsureStateDir() error = %v", err)
		}
		info, err := os.Stat(cfg.Paths.StateDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory")
		}
	})

	t.Run("rejects file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("content"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg := DefaultConfig()
		cfg.Paths.StateDir = file

		err := cfg.EnsureStateDir()
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Errorf("EnsureStateDir() error = %v, want not a directory", err)
		}
	})

	t.Run("rejects read-only directory", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("root bypasses permission checks")
		}
		dir := filepath.Join(t.TempDir(), "ro")
		if err := os.MkdirAll(dir, 0500); err != nil {
			t.Fatal(err)
		}
		cfg := DefaultConfig()
		cfg.Paths.StateDir = dir

		err := cfg.EnsureStateDir()
		if err == nil || !strings.Contains(err.Error(), "not writable") {
			t.Errorf("EnsureStateDir() error = %v, want not writable", err)
		}
	})
}
