//go:build linux

package network

import (
	"context"

	"github.com/containerd/log"

	"github.com/spin-stack/bridgenet/internal/host/link"
)

// Detacher removes container-side interfaces. Host veth ends and bridges are
// left alone; the kernel drops the host end when its peer goes away.
type Detacher struct {
	toolkit  link.Toolkit
	executor Executor
}

// NewDetacher creates a Detacher.
func NewDetacher(toolkit link.Toolkit, executor Executor) *Detacher {
	return &Detacher{toolkit: toolkit, executor: executor}
}

// Detach deletes, inside the namespace at netnsPath, the interface of every
// network listed in opts.NetworkInfo. Networks are processed in name order
// and the first failure aborts the detach.
func (d *Detacher) Detach(ctx context.Context, opts *NetworkOptions, netnsPath string) error {
	if opts == nil {
		return configError("detach", "", netnsPath, "no network options")
	}
	if netnsPath == "" {
		return configError("detach", "", "", "network namespace path is empty")
	}

	for _, name := range sortedKeys(opts.NetworkInfo) {
		per, ok := opts.Networks[name]
		if !ok {
			return configError("detach", "", netnsPath, "network %s has no interface options", name)
		}
		if err := d.detachOne(ctx, name, per.InterfaceName, netnsPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detacher) detachOne(ctx context.Context, network, ifname, netnsPath string) error {
	if ifname == "" {
		return configError("detach", "", netnsPath, "network %s: interface name is empty", network)
	}

	err := d.executor.Do(netnsPath, func() error {
		return d.toolkit.RemoveInterface(ifname)
	})
	if err != nil {
		return stepError("remove interface", ifname, netnsPath, err)
	}

	log.G(ctx).WithFields(log.Fields{
		"network":   network,
		"interface": ifname,
		"netns":     netnsPath,
	}).Debug("container interface removed")
	return nil
}
