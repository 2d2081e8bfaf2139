//go:build linux

package network

import (
	"fmt"
	"net"

	cnitypes "github.com/containernetworking/cni/pkg/types"
)

// subnetBinding pairs one subnet with the static address assigned in it.
// Building these up front keeps address i tied to subnet i through every
// later step.
type subnetBinding struct {
	network *net.IPNet // subnet with host bits cleared
	gateway net.IP     // nil when the subnet has no gateway
	address net.IP
}

// mask is the subnet mask applied to both the bridge gateway and the
// container address.
func (b subnetBinding) mask() net.IPMask {
	return b.network.Mask
}

// netAddress is the container address with the subnet's prefix length.
func (b subnetBinding) netAddress() NetAddress {
	return NetAddress{
		Subnet:  cnitypes.IPNet{IP: b.address, Mask: b.mask()},
		Gateway: b.gateway,
	}
}

// bindSubnets validates the static addresses against the network's subnets
// and pairs them positionally. Nothing is touched on failure.
func bindSubnets(opts PerNetworkOptions, network Network) ([]subnetBinding, error) {
	if len(opts.StaticIPs) != len(network.Subnets) {
		return nil, fmt.Errorf("network %s has %d subnets but %d static addresses were given",
			network.Name, len(network.Subnets), len(opts.StaticIPs))
	}

	bindings := make([]subnetBinding, 0, len(network.Subnets))
	for i, subnet := range network.Subnets {
		b, err := bindSubnet(subnet, opts.StaticIPs[i])
		if err != nil {
			return nil, fmt.Errorf("subnet %d: %w", i, err)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func bindSubnet(subnet Subnet, address net.IP) (subnetBinding, error) {
	cidr := net.IPNet(subnet.Subnet)
	if cidr.IP == nil || cidr.Mask == nil {
		return subnetBinding{}, fmt.Errorf("subnet is empty")
	}
	ones, bits := cidr.Mask.Size()
	if bits == 0 {
		return subnetBinding{}, fmt.Errorf("subnet %s has a non-canonical mask", cidr.String())
	}

	v4 := bits == net.IPv4len*8
	network := &net.IPNet{IP: normalizeIP(cidr.IP.Mask(cidr.Mask), v4), Mask: cidr.Mask}
	if network.IP == nil {
		return subnetBinding{}, fmt.Errorf("subnet %s mixes address families", cidr.String())
	}

	addr := normalizeIP(address, v4)
	if addr == nil {
		return subnetBinding{}, fmt.Errorf("address %s is not valid in %s/%d", address, network.IP, ones)
	}
	if !network.Contains(addr) {
		return subnetBinding{}, fmt.Errorf("address %s is outside subnet %s", addr, network)
	}

	var gateway net.IP
	if subnet.Gateway != nil {
		gateway = normalizeIP(subnet.Gateway, v4)
		if gateway == nil {
			return subnetBinding{}, fmt.Errorf("gateway %s is not valid in %s", subnet.Gateway, network)
		}
	}

	return subnetBinding{network: network, gateway: gateway, address: addr}, nil
}

// normalizeIP returns ip in the length matching the subnet family, or nil if
// ip belongs to the other family.
func normalizeIP(ip net.IP, v4 bool) net.IP {
	if ip == nil {
		return nil
	}
	if v4 {
		return ip.To4()
	}
	if ip.To4() != nil {
		return nil
	}
	return ip.To16()
}
