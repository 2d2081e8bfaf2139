//go:build linux

package network

import (
	"encoding/json"
	"net"
	"testing"

	cnitypes "github.com/containernetworking/cni/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkOptionsDecode(t *testing.T) {
	const doc = `{
		"container_id": "3f9c",
		"container_name": "web",
		"networks": {
			"podman": {"interface_name": "eth0", "static_ips": ["10.88.0.5", "fd00::5"], "aliases": ["web"]}
		},
		"network_info": {
			"podman": {
				"name": "podman",
				"id": "2f25",
				"driver": "bridge",
				"network_interface": "podman0",
				"subnets": [
					{"subnet": "10.88.0.0/16", "gateway": "10.88.0.1"},
					{"subnet": "fd00::/64"}
				],
				"ipv6_enabled": true,
				"dns_enabled": false
			}
		}
	}`

	var opts NetworkOptions
	require.NoError(t, json.Unmarshal([]byte(doc), &opts))

	assert.Equal(t, "3f9c", opts.ContainerID)
	per := opts.Networks["podman"]
	assert.Equal(t, "eth0", per.InterfaceName)
	require.Len(t, per.StaticIPs, 2)
	assert.True(t, per.StaticIPs[0].Equal(net.ParseIP("10.88.0.5")))
	assert.Equal(t, []string{"web"}, per.Aliases)

	network := opts.NetworkInfo["podman"]
	assert.Equal(t, "podman0", network.NetworkInterface)
	assert.True(t, network.IPv6Enabled)
	require.Len(t, network.Subnets, 2)
	assert.Equal(t, "10.88.0.0/16", cidrString(network.Subnets[0].Subnet))
	assert.Equal(t, "10.88.0.1", network.Subnets[0].Gateway.String())
	assert.Nil(t, network.Subnets[1].Gateway)
}

func TestStatusBlockEncode(t *testing.T) {
	addr, err := cnitypes.ParseCIDR("10.88.0.5/16")
	require.NoError(t, err)

	status := newStatusBlock()
	status.Interfaces["eth0"] = NetInterface{
		MacAddress: "02:42:0a:58:00:05",
		Networks: []NetAddress{{
			Subnet:  cnitypes.IPNet(*addr),
			Gateway: net.ParseIP("10.88.0.1"),
		}},
	}

	data, err := json.Marshal(status)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	// DNS fields are always present, as empty lists rather than null.
	assert.Equal(t, []any{}, generic["dns_search_domains"])
	assert.Equal(t, []any{}, generic["dns_server_ips"])

	iface := generic["interfaces"].(map[string]any)["eth0"].(map[string]any)
	assert.Equal(t, "02:42:0a:58:00:05", iface["mac_address"])
	first := iface["networks"].([]any)[0].(map[string]any)
	assert.Equal(t, "10.88.0.5/16", first["subnet"])
	assert.Equal(t, "10.88.0.1", first["gateway"])
}
