//go:build linux

package network

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"

	"github.com/containerd/log"

	"github.com/spin-stack/bridgenet/internal/host/link"
)

const (
	// DefaultVethPrefix prefixes generated host-side veth names.
	DefaultVethPrefix = "veth"

	loopbackInterface = "lo"
)

// Executor runs a unit of work inside the network namespace at path.
// netns.Executor is the production implementation.
type Executor interface {
	Do(path string, fn func() error) error

	// Check reports whether the namespace at path can be opened.
	Check(path string) error
}

// Attacher wires one container interface into one bridge network.
type Attacher struct {
	toolkit    link.Toolkit
	executor   Executor
	vethPrefix string
	metrics    *Metrics
}

// NewAttacher creates an Attacher. An empty vethPrefix selects DefaultVethPrefix.
func NewAttacher(toolkit link.Toolkit, executor Executor, vethPrefix string) *Attacher {
	if vethPrefix == "" {
		vethPrefix = DefaultVethPrefix
	}
	return &Attacher{
		toolkit:    toolkit,
		executor:   executor,
		vethPrefix: vethPrefix,
	}
}

// Attach creates a veth pair between network's bridge and the namespace at
// netnsPath, configures the container end and returns its status.
//
// The namespace file is opened first; if it cannot be, nothing is changed.
// Host-side work (bridge, veth pair) runs on the calling thread and always
// completes before any work inside the container namespace starts. If the
// container side cannot be configured, the host end of the veth pair is
// removed before the error is returned. The bridge is shared and never
// removed.
func (a *Attacher) Attach(ctx context.Context, opts PerNetworkOptions, network Network, netnsPath string) (*StatusBlock, error) {
	status, _, err := a.attach(ctx, opts, network, netnsPath)
	return status, err
}

// attach is Attach that also reports the generated host veth name.
func (a *Attacher) attach(ctx context.Context, opts PerNetworkOptions, network Network, netnsPath string) (*StatusBlock, string, error) {
	ifname := opts.InterfaceName
	bridge := network.NetworkInterface

	if ifname == "" {
		return nil, "", configError("attach", "", netnsPath, "network %s: interface name is empty", network.Name)
	}
	if bridge == "" {
		return nil, "", configError("attach", ifname, netnsPath, "network %s has no bridge interface", network.Name)
	}
	if netnsPath == "" {
		return nil, "", configError("attach", ifname, "", "network namespace path is empty")
	}

	bindings, err := bindSubnets(opts, network)
	if err != nil {
		return nil, "", &Error{Op: "attach", Interface: ifname, Netns: netnsPath, Cause: err, Category: ErrInvalidConfig}
	}

	gateways := make([]net.IP, 0, len(bindings))
	masks := make([]net.IPMask, 0, len(bindings))
	addresses := make([]NetAddress, 0, len(bindings))
	for _, b := range bindings {
		gateways = append(gateways, b.gateway)
		masks = append(masks, b.mask())
		addresses = append(addresses, b.netAddress())
	}

	logger := log.G(ctx).WithFields(log.Fields{
		"network":   network.Name,
		"bridge":    bridge,
		"interface": ifname,
		"netns":     netnsPath,
	})
	logger.WithField("addresses", len(addresses)).Debug("attaching container interface")

	// Host state stays untouched for a namespace that is already gone.
	if err := a.executor.Check(netnsPath); err != nil {
		return nil, "", stepError("open namespace", ifname, netnsPath, err)
	}

	if err := a.toolkit.ConfigureBridge(bridge, gateways, masks); err != nil {
		return nil, "", stepError("configure bridge", bridge, "", err)
	}

	hostVeth, err := a.hostVethName()
	if err != nil {
		return nil, "", fmt.Errorf("generate host veth name: %w", err)
	}
	logger = logger.WithField("host_veth", hostVeth)

	if err := a.toolkit.CreateVethPair(hostVeth, ifname, bridge, netnsPath); err != nil {
		return nil, "", stepError("create veth pair", hostVeth, netnsPath, err)
	}
	logger.Debug("veth pair created")

	mac, err := a.configureContainer(ctx, ifname, bindings, netnsPath)
	if err != nil {
		a.removeHostVeth(ctx, hostVeth)
		return nil, "", err
	}

	status := newStatusBlock()
	status.Interfaces[ifname] = NetInterface{
		MacAddress: mac,
		Networks:   addresses,
	}

	logger.WithField("mac", mac).Debug("container interface configured")
	return status, hostVeth, nil
}

// configureContainer assigns the addresses, brings the interface and loopback
// up, and reads the MAC, all inside the container namespace.
func (a *Attacher) configureContainer(ctx context.Context, ifname string, bindings []subnetBinding, netnsPath string) (string, error) {
	var mac string
	err := a.executor.Do(netnsPath, func() error {
		for _, b := range bindings {
			if err := a.toolkit.AssignAddress(ifname, b.address, b.mask()); err != nil {
				return stepError("assign address", ifname, netnsPath, err)
			}
		}
		if err := a.toolkit.SetUp(ifname); err != nil {
			return stepError("set link up", ifname, netnsPath, err)
		}
		if err := a.toolkit.SetUp(loopbackInterface); err != nil {
			return stepError("set link up", loopbackInterface, netnsPath, err)
		}

		var err error
		mac, err = a.toolkit.HardwareAddr(ifname)
		if err != nil {
			return stepError("read mac address", ifname, netnsPath, err)
		}
		return nil
	})
	if err != nil {
		return "", stepError("configure container interface", ifname, netnsPath, err)
	}
	return mac, nil
}

// removeHostVeth deletes a host veth left behind by a failed attach. Its own
// failure is logged; the caller's error is the one reported.
func (a *Attacher) removeHostVeth(ctx context.Context, hostVeth string) {
	if err := a.toolkit.RemoveInterface(hostVeth); err != nil {
		if a.metrics != nil {
			a.metrics.RecordCleanupFailure()
		}
		log.G(ctx).WithError(err).WithField("host_veth", hostVeth).
			Warn("failed to remove host veth after failed attach")
		return
	}
	log.G(ctx).WithField("host_veth", hostVeth).Debug("removed host veth after failed attach")
}

func (a *Attacher) hostVethName() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return a.vethPrefix + hex.EncodeToString(suffix), nil
}
