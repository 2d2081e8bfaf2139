//go:build linux

package main

import (
	"fmt"

	current "github.com/containernetworking/cni/pkg/types/100"
	"github.com/spf13/cobra"

	"github.com/spin-stack/bridgenet/internal/host/network"
)

const (
	formatStatus = "status"
	formatCNI    = "cni"
)

func newSetupCommand(c *cli) *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "setup NETNS",
		Short: "Attach a network namespace to the networks in a NetworkOptions document",
		Long: `Reads a NetworkOptions JSON document (from --file, or stdin) and attaches
the namespace to every network in it. NETNS is a name under the configured
netns directory or a path to a namespace file.

On success the status of every network is printed as JSON. With --format cni
each status is printed as a CNI result instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatStatus && format != formatCNI {
				return fmt.Errorf("unknown format %q (want %s or %s)", format, formatStatus, formatCNI)
			}
			opts, err := c.readOptions(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			m, err := c.manager(ctx)
			if err != nil {
				return err
			}
			defer m.Close()
			defer logMetrics(ctx, m)

			netnsPath := c.netnsPath(args[0])
			results, err := m.Setup(ctx, opts, netnsPath)
			if err != nil {
				return err
			}

			if format == formatCNI {
				return c.writeJSON(cniResults(results, netnsPath))
			}
			return c.writeJSON(results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "NetworkOptions JSON file (default stdin)")
	cmd.Flags().StringVar(&format, "format", formatStatus, "output format: status or cni")
	return cmd
}

func cniResults(results map[string]network.StatusBlock, netnsPath string) map[string]*current.Result {
	out := make(map[string]*current.Result, len(results))
	for name, status := range results {
		out[name] = status.ToCNIResult(netnsPath)
	}
	return out
}
