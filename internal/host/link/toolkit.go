//go:build linux

// Package link provides the primitive interface operations used to wire a
// container into a host bridge: bridges, veth pairs, addresses and link state.
//
// Every call acts on the network namespace of the calling OS thread. Callers
// that need another namespace run these calls through netns.Run.
package link

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/spin-stack/bridgenet/internal/host/netns"
)

// Toolkit is the set of primitive operations the attach/detach engine consumes.
// Each operation either fully succeeds or leaves nothing behind.
type Toolkit interface {
	// ConfigureBridge ensures bridge name exists, is up, and carries every
	// gateway address with its mask. Safe to call concurrently for one bridge.
	ConfigureBridge(name string, gateways []net.IP, masks []net.IPMask) error

	// CreateVethPair creates hostName attached to bridge with its peer
	// containerName placed directly in the namespace at netnsPath.
	CreateVethPair(hostName, containerName, bridge, netnsPath string) error

	// RemoveInterface deletes the named interface.
	RemoveInterface(name string) error

	// AssignAddress adds ip/mask to the named interface.
	AssignAddress(name string, ip net.IP, mask net.IPMask) error

	// SetUp brings the named interface up.
	SetUp(name string) error

	// HardwareAddr returns the MAC address of the named interface.
	HardwareAddr(name string) (string, error)
}

// IsNotFound reports whether err means the interface does not exist.
func IsNotFound(err error) bool {
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, unix.ENODEV)
}

// Netlink implements Toolkit with rtnetlink requests.
type Netlink struct {
	op Operator
}

var _ Toolkit = (*Netlink)(nil)

// NewNetlink returns a toolkit talking to the kernel.
func NewNetlink() *Netlink {
	return NewNetlinkWithOperator(NewDefaultOperator())
}

// NewNetlinkWithOperator returns a toolkit backed by op.
func NewNetlinkWithOperator(op Operator) *Netlink {
	return &Netlink{op: op}
}

func (n *Netlink) ConfigureBridge(name string, gateways []net.IP, masks []net.IPMask) error {
	if len(gateways) != len(masks) {
		return fmt.Errorf("bridge %s: %d gateways but %d netmasks", name, len(gateways), len(masks))
	}

	br, err := n.ensureBridge(name)
	if err != nil {
		return err
	}

	for i, gw := range gateways {
		if gw == nil {
			continue
		}
		addr := &netlink.Addr{IPNet: &net.IPNet{IP: gw, Mask: masks[i]}}
		// Another attachment may have bound the same gateway already.
		if err := n.op.AddrAdd(br, addr); err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("failed to add address %s to bridge %s: %w", addr.IPNet, name, err)
		}
	}

	if err := n.op.LinkSetUp(br); err != nil {
		return fmt.Errorf("failed to set bridge %s up: %w", name, err)
	}
	return nil
}

// ensureBridge returns the bridge, creating it if missing. Losing a creation
// race to a concurrent caller is not an error.
func (n *Netlink) ensureBridge(name string) (netlink.Link, error) {
	existing, err := n.op.LinkByName(name)
	if err == nil {
		return asBridge(existing)
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up bridge %s: %w", name, err)
	}

	la := netlink.NewLinkAttrs()
	la.Name = name
	if err := n.op.LinkAdd(&netlink.Bridge{LinkAttrs: la}); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("failed to create bridge %s: %w", name, err)
	}

	created, err := n.op.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bridge %s after creation: %w", name, err)
	}
	return asBridge(created)
}

func asBridge(l netlink.Link) (netlink.Link, error) {
	if _, ok := l.(*netlink.Bridge); !ok {
		return nil, fmt.Errorf("interface %s exists but is a %s, not a bridge", l.Attrs().Name, l.Type())
	}
	return l, nil
}

func (n *Netlink) CreateVethPair(hostName, containerName, bridge, netnsPath string) error {
	br, err := n.op.LinkByName(bridge)
	if err != nil {
		return fmt.Errorf("failed to look up bridge %s: %w", bridge, err)
	}

	target, err := netns.Open(netnsPath)
	if err != nil {
		return err
	}
	defer target.Close()

	// One request creates both ends, enslaves the host end and places the
	// peer in the container namespace, so the kernel applies all or nothing.
	la := netlink.NewLinkAttrs()
	la.Name = hostName
	la.MasterIndex = br.Attrs().Index
	la.MTU = br.Attrs().MTU
	veth := &netlink.Veth{
		LinkAttrs:     la,
		PeerName:      containerName,
		PeerNamespace: netlink.NsFd(int(target)),
	}
	if err := n.op.LinkAdd(veth); err != nil {
		return fmt.Errorf("failed to create veth pair %s/%s: %w", hostName, containerName, err)
	}

	if err := n.op.LinkSetUp(veth); err != nil {
		// Deleting one end removes its peer too.
		if delErr := n.op.LinkDel(veth); delErr != nil {
			return fmt.Errorf("failed to set veth %s up: %w (cleanup failed: %v)", hostName, err, delErr)
		}
		return fmt.Errorf("failed to set veth %s up: %w", hostName, err)
	}
	return nil
}

func (n *Netlink) RemoveInterface(name string) error {
	l, err := n.op.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	if err := n.op.LinkDel(l); err != nil {
		return fmt.Errorf("failed to delete interface %s: %w", name, err)
	}
	return nil
}

func (n *Netlink) AssignAddress(name string, ip net.IP, mask net.IPMask) error {
	l, err := n.op.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: mask}}
	if err := n.op.AddrAdd(l, addr); err != nil {
		return fmt.Errorf("failed to add address %s to %s: %w", addr.IPNet, name, err)
	}
	return nil
}

func (n *Netlink) SetUp(name string) error {
	l, err := n.op.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	if err := n.op.LinkSetUp(l); err != nil {
		return fmt.Errorf("failed to set %s up: %w", name, err)
	}
	return nil
}

func (n *Netlink) HardwareAddr(name string) (string, error) {
	l, err := n.op.LinkByName(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up interface %s: %w", name, err)
	}
	mac := l.Attrs().HardwareAddr
	if len(mac) == 0 {
		return "", fmt.Errorf("interface %q has empty MAC", name)
	}
	return mac.String(), nil
}
