//go:build linux

package network

import (
	"fmt"
	"net"
	"strings"
	"sync"

	cnitypes "github.com/containernetworking/cni/pkg/types"
	"golang.org/x/sys/unix"

	"github.com/spin-stack/bridgenet/internal/host/netns"
)

var errNoSuchLink = fmt.Errorf("Link not found: %w", unix.ENODEV)

// fakeToolkit records every call together with the namespace it ran in.
// Calls made while fakeExecutor is running work are tagged "ns:"; all
// others are tagged "host:".
type fakeToolkit struct {
	mu    sync.Mutex
	calls []string
	exec  *fakeExecutor

	// container-side interfaces that exist, by name
	containerLinks map[string]bool

	bridgeErr  error
	vethErr    error
	assignErr  error
	setUpErr   map[string]error
	macErr     error
	removeErr  map[string]error
	hostRmErr  error
	mac        string
	vethsSeen  []string
	removedIfs []string
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		containerLinks: make(map[string]bool),
		setUpErr:       make(map[string]error),
		removeErr:      make(map[string]error),
		mac:            "02:42:0a:58:00:05",
	}
}

func (f *fakeToolkit) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	where := "host:"
	if f.exec != nil && f.exec.inside() {
		where = "ns:"
	}
	f.calls = append(f.calls, where+fmt.Sprintf(format, args...))
}

func (f *fakeToolkit) ConfigureBridge(name string, gateways []net.IP, masks []net.IPMask) error {
	parts := make([]string, 0, len(gateways))
	for i, gw := range gateways {
		if gw == nil {
			parts = append(parts, "-")
			continue
		}
		ones, _ := masks[i].Size()
		parts = append(parts, fmt.Sprintf("%s/%d", gw, ones))
	}
	f.record("bridge %s [%s]", name, strings.Join(parts, " "))
	return f.bridgeErr
}

func (f *fakeToolkit) CreateVethPair(hostName, containerName, bridge, netnsPath string) error {
	f.record("veth %s %s %s %s", hostName, containerName, bridge, netnsPath)
	f.mu.Lock()
	f.vethsSeen = append(f.vethsSeen, hostName)
	f.mu.Unlock()
	if f.vethErr != nil {
		return f.vethErr
	}
	f.mu.Lock()
	f.containerLinks[containerName] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeToolkit) RemoveInterface(name string) error {
	f.record("remove %s", name)
	if err := f.removeErr[name]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.HasPrefix(name, "veth") {
		if f.hostRmErr != nil {
			return f.hostRmErr
		}
		f.removedIfs = append(f.removedIfs, name)
		return nil
	}
	if !f.containerLinks[name] {
		return errNoSuchLink
	}
	delete(f.containerLinks, name)
	f.removedIfs = append(f.removedIfs, name)
	return nil
}

func (f *fakeToolkit) AssignAddress(name string, ip net.IP, mask net.IPMask) error {
	ones, _ := mask.Size()
	f.record("addr %s %s/%d", name, ip, ones)
	return f.assignErr
}

func (f *fakeToolkit) SetUp(name string) error {
	f.record("up %s", name)
	return f.setUpErr[name]
}

func (f *fakeToolkit) HardwareAddr(name string) (string, error) {
	f.record("mac %s", name)
	if f.macErr != nil {
		return "", f.macErr
	}
	return f.mac, nil
}

func (f *fakeToolkit) callsWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// fakeExecutor runs work inline and marks the toolkit as being inside the
// namespace while it does.
type fakeExecutor struct {
	mu      sync.Mutex
	depth   int
	paths   []string
	checked []string

	// checkErr fails Check; openErr fails Do, as if the namespace vanished
	// after Check succeeded.
	checkErr error
	openErr  error
	panicky  bool
}

func (e *fakeExecutor) Check(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checked = append(e.checked, path)
	return e.checkErr
}

func (e *fakeExecutor) Do(path string, fn func() error) error {
	e.mu.Lock()
	e.paths = append(e.paths, path)
	e.mu.Unlock()
	if e.openErr != nil {
		return e.openErr
	}
	if e.panicky {
		return &netns.WorkerError{Path: path, Value: "boom"}
	}

	e.mu.Lock()
	e.depth++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.depth--
		e.mu.Unlock()
	}()
	return fn()
}

func (e *fakeExecutor) inside() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.depth > 0
}

func newFakes() (*fakeToolkit, *fakeExecutor) {
	tk := newFakeToolkit()
	exec := &fakeExecutor{}
	tk.exec = exec
	return tk, exec
}

func mustCIDR(s string) Subnet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return Subnet{Subnet: cnitypes.IPNet(*n)}
}

func withGateway(s Subnet, gw string) Subnet {
	s.Gateway = net.ParseIP(gw)
	return s
}

func cidrString(n cnitypes.IPNet) string {
	v := net.IPNet(n)
	return v.String()
}

func ips(addrs ...string) []net.IP {
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, net.ParseIP(a))
	}
	return out
}
