//go:build linux

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spin-stack/bridgenet/internal/host/network"
)

func newStatusCommand(c *cli) *cobra.Command {
	var netns string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List recorded attachments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.Network.RecordsEnabled() {
				return errors.New("attachment records are disabled in the configuration")
			}

			ctx := cmd.Context()
			m, err := c.manager(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			attachments, err := m.Attachments(ctx)
			if err != nil {
				return err
			}

			out := []network.Attachment{}
			for _, a := range attachments {
				if netns != "" && a.Netns != c.netnsPath(netns) {
					continue
				}
				out = append(out, a)
			}
			return c.writeJSON(out)
		},
	}

	cmd.Flags().StringVar(&netns, "netns", "", "only list attachments of this namespace")
	return cmd
}
