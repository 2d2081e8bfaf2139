//go:build linux

package main

import (
	"fmt"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/spin-stack/bridgenet/internal/host/netns"
)

func newNetnsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netns",
		Short: "Manage named network namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newNetnsAddCommand(c),
		&cobra.Command{
			Use:     "delete NAME",
			Aliases: []string{"del", "rm"},
			Short:   "Delete a named network namespace",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dir := c.netnsDir()
				if !dir.Exists(args[0]) {
					return fmt.Errorf("%s: %w", dir.Path(args[0]), netns.ErrNamespaceNotFound)
				}
				return dir.Delete(args[0])
			},
		},
	)
	return cmd
}

func newNetnsAddCommand(c *cli) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a named network namespace and print its path",
		Long: `Creates a named network namespace and prints its path. An existing
namespace with the same name is an error unless --replace is given, in which
case it is unmounted and created anew.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.netnsDir()
			create := dir.Create
			if replace {
				create = dir.Recreate
			}
			path, err := create(args[0])
			if err != nil {
				return err
			}
			log.G(cmd.Context()).WithField("netns", path).Debug("namespace created")
			_, err = fmt.Fprintln(c.out, path)
			return err
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing namespace with the same name")
	return cmd
}
