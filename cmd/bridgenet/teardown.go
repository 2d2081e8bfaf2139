//go:build linux

package main

import (
	"github.com/spf13/cobra"
)

func newTeardownCommand(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "teardown NETNS",
		Short: "Remove the container interfaces of the networks in a NetworkOptions document",
		Long: `Reads a NetworkOptions JSON document (from --file, or stdin) and deletes,
inside the namespace, the interface of every network in network_info.
Host veth ends and bridges are left in place. The first interface that
cannot be removed stops the teardown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			return m.Teardown(ctx, opts, c.netnsPath(args[0]))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "NetworkOptions JSON file (default stdin)")
	return cmd
}
