//go:build linux

package link

import (
	"github.com/vishvananda/netlink"
)

// Operator is the subset of netlink the toolkit needs. It exists so tests can
// substitute a fake kernel.
type Operator interface {
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkDel(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
}

// DefaultOperator implements Operator on the calling thread's netlink socket.
type DefaultOperator struct{}

func NewDefaultOperator() Operator {
	return &DefaultOperator{}
}

func (o *DefaultOperator) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (o *DefaultOperator) LinkAdd(link netlink.Link) error {
	return netlink.LinkAdd(link)
}

func (o *DefaultOperator) LinkDel(link netlink.Link) error {
	return netlink.LinkDel(link)
}

func (o *DefaultOperator) LinkSetUp(link netlink.Link) error {
	return netlink.LinkSetUp(link)
}

func (o *DefaultOperator) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrAdd(link, addr)
}
