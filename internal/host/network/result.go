//go:build linux

package network

import (
	"net"

	current "github.com/containernetworking/cni/pkg/types/100"
)

// ToCNIResult converts the status into a CNI result. Interfaces are listed
// in name order with netnsPath as their sandbox, and every address points
// back at its interface.
func (s *StatusBlock) ToCNIResult(netnsPath string) *current.Result {
	result := &current.Result{
		CNIVersion: current.ImplementedSpecVersion,
		Interfaces: []*current.Interface{},
		IPs:        []*current.IPConfig{},
	}
	if s == nil {
		return result
	}

	for _, ip := range s.DNSServerIPs {
		result.DNS.Nameservers = append(result.DNS.Nameservers, ip.String())
	}
	result.DNS.Search = append([]string(nil), s.DNSSearchDomains...)

	for _, name := range sortedKeys(s.Interfaces) {
		iface := s.Interfaces[name]
		idx := len(result.Interfaces)
		result.Interfaces = append(result.Interfaces, &current.Interface{
			Name:    name,
			Mac:     iface.MacAddress,
			Sandbox: netnsPath,
		})
		for _, addr := range iface.Networks {
			result.IPs = append(result.IPs, &current.IPConfig{
				Interface: current.Int(idx),
				Address:   net.IPNet(addr.Subnet),
				Gateway:   addr.Gateway,
			})
		}
	}
	return result
}
