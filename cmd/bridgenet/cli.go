//go:build linux

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/spin-stack/bridgenet/internal/boltstore"
	"github.com/spin-stack/bridgenet/internal/config"
	"github.com/spin-stack/bridgenet/internal/host/netns"
	"github.com/spin-stack/bridgenet/internal/host/network"
	"github.com/spin-stack/bridgenet/internal/version"
)

const attachmentBucket = "attachments"

// cli carries the global flags and I/O shared by every subcommand.
type cli struct {
	configPath string
	debug      bool

	in  io.Reader
	out io.Writer
	err io.Writer

	cfg *config.Config
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, err: errOut}
}

func newRootCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bridgenet",
		Short:         "Attach container network namespaces to host bridges",
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			return c.configureLogging()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetIn(c.in)
	cmd.SetOut(c.out)
	cmd.SetErr(c.err)

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $"+config.ConfigEnvVar+" or "+config.DefaultConfigPath+")")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newSetupCommand(c),
		newTeardownCommand(c),
		newStatusCommand(c),
		newNetnsCommand(c),
	)
	return cmd
}

func (c *cli) loadConfig() error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFrom(c.configPath)
	} else {
		c.cfg, err = config.Get()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func (c *cli) configureLogging() error {
	level := c.cfg.Log.Level
	if c.debug {
		level = "debug"
	}
	if err := log.SetLevel(strings.ToLower(level)); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}
	log.L.Logger.SetOutput(c.err)
	return nil
}

// manager builds a network.Manager from the loaded config. The caller must
// Close it.
func (c *cli) manager(ctx context.Context) (*network.Manager, error) {
	mc := network.Config{VethPrefix: c.cfg.Network.VethPrefix}

	if c.cfg.Network.RecordsEnabled() {
		if err := c.cfg.EnsureStateDir(); err != nil {
			return nil, err
		}
		records, err := boltstore.NewBoltStore[network.Attachment](c.cfg.Paths.DBPath(), attachmentBucket)
		if err != nil {
			return nil, fmt.Errorf("open attachment records: %w", err)
		}
		mc.Records = records
		log.G(ctx).WithField("db", c.cfg.Paths.DBPath()).Debug("attachment records enabled")
	}

	return network.NewManager(mc), nil
}

// netnsPath resolves a namespace argument. Bare names are looked up in the
// configured namespace directory; anything containing a slash is a path.
func (c *cli) netnsPath(arg string) string {
	if strings.ContainsRune(arg, filepath.Separator) {
		return arg
	}
	return c.netnsDir().Path(arg)
}

func (c *cli) netnsDir() netns.Dir {
	return netns.Dir(c.cfg.Paths.NetnsDir)
}

// readOptions decodes a NetworkOptions document from file, or from stdin
// when file is empty or "-".
func (c *cli) readOptions(file string) (*network.NetworkOptions, error) {
	r := c.in
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open network options: %w", err)
		}
		defer f.Close()
		r = f
	}

	var opts network.NetworkOptions
	if err := json.NewDecoder(r).Decode(&opts); err != nil {
		return nil, fmt.Errorf("decode network options: %w", err)
	}
	return &opts, nil
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func logMetrics(ctx context.Context, m *network.Manager) {
	snap := m.Metrics().Snapshot()
	log.G(ctx).WithFields(log.Fields{
		"attach_attempts":  snap.AttachAttempts,
		"attach_failures":  snap.AttachFailures,
		"rollbacks":        snap.Rollbacks,
		"detach_attempts":  snap.DetachAttempts,
		"detach_failures":  snap.DetachFailures,
		"cleanup_failures": snap.CleanupFailures,
	}).Debug("operation metrics")
}
