//go:build linux

package network

import (
	"net"
	"sort"
	"time"

	cnitypes "github.com/containernetworking/cni/pkg/types"
)

// Network is a named logical network backed by a host bridge.
type Network struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`

	// Driver is informational; only bridge networks are handled here.
	Driver string `json:"driver,omitempty"`

	// NetworkInterface is the host bridge name.
	NetworkInterface string `json:"network_interface"`

	// Subnets are positionally matched against PerNetworkOptions.StaticIPs.
	Subnets []Subnet `json:"subnets"`

	IPv6Enabled bool              `json:"ipv6_enabled,omitempty"`
	Internal    bool              `json:"internal,omitempty"`
	DNSEnabled  bool              `json:"dns_enabled,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

// Subnet is a CIDR range with an optional gateway inside it.
type Subnet struct {
	Subnet  cnitypes.IPNet `json:"subnet"`
	Gateway net.IP         `json:"gateway,omitempty"`
}

// PerNetworkOptions are the parameters of one container attachment.
type PerNetworkOptions struct {
	// InterfaceName is the container-side interface to create, e.g. eth0.
	InterfaceName string `json:"interface_name"`

	// StaticIPs[i] is assigned within Network.Subnets[i].
	StaticIPs []net.IP `json:"static_ips"`

	Aliases []string `json:"aliases,omitempty"`
}

// NetworkOptions is a request to attach or detach a container on one or
// more networks.
type NetworkOptions struct {
	ContainerID   string `json:"container_id,omitempty"`
	ContainerName string `json:"container_name,omitempty"`

	// Networks maps network name to attachment parameters.
	Networks map[string]PerNetworkOptions `json:"networks"`

	// NetworkInfo maps network name to the resolved network.
	NetworkInfo map[string]Network `json:"network_info"`
}

// StatusBlock describes the interfaces created by an attach.
type StatusBlock struct {
	// DNS fields are never populated at this layer but are always present.
	DNSSearchDomains []string `json:"dns_search_domains"`
	DNSServerIPs     []net.IP `json:"dns_server_ips"`

	// Interfaces is keyed by container-side interface name.
	Interfaces map[string]NetInterface `json:"interfaces"`
}

// NetInterface is one container-side interface.
type NetInterface struct {
	MacAddress string       `json:"mac_address"`
	Networks   []NetAddress `json:"networks"`
}

// NetAddress is an address with its subnet prefix length and gateway.
type NetAddress struct {
	// Subnet holds the container address, not the network address.
	Subnet  cnitypes.IPNet `json:"subnet"`
	Gateway net.IP         `json:"gateway,omitempty"`
}

// Attachment is the persisted record of one successful attach.
type Attachment struct {
	Netns       string      `json:"netns"`
	ContainerID string      `json:"container_id,omitempty"`
	Network     string      `json:"network"`
	Bridge      string      `json:"bridge"`
	Interface   string      `json:"interface"`
	HostVeth    string      `json:"host_veth"`
	Status      StatusBlock `json:"status"`
	Created     time.Time   `json:"created"`
}

func newStatusBlock() *StatusBlock {
	return &StatusBlock{
		DNSSearchDomains: []string{},
		DNSServerIPs:     []net.IP{},
		Interfaces:       make(map[string]NetInterface, 1),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
