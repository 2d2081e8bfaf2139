//go:build linux

// Package network attaches container interfaces to host bridges and detaches
// them again.
//
// # Namespace Model
//
// Every exported operation must be called from the host network namespace.
// Bridge and veth creation run on the caller's thread; all work on the
// container side (addresses, link state, MAC readback, interface removal)
// goes through an Executor, which runs it on a dedicated OS thread switched
// into the container namespace. The package never switches namespaces
// itself.
//
// # Synchronization Model
//
// The Manager serializes operations per namespace path through the inFlight
// map (protected by inflightMu):
//   - The first caller for a path registers a done channel and does the work
//   - Later callers for the same path block on that channel, then retry
//   - Callers for different paths never wait on each other
//
// inflightMu is never held across toolkit or executor calls. Metrics are
// atomics and need no lock.
//
// Resource Lifecycle:
//   - Bridge: created on first attach, never removed here
//   - Host veth: created by attach, removed on failed attach, otherwise
//     dropped by the kernel when its container peer is deleted
//   - Container interface: created by attach, removed by detach
//   - Attachment record: stored after a successful attach, removed by teardown
package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/containerd/log"

	"github.com/spin-stack/bridgenet/internal/boltstore"
	"github.com/spin-stack/bridgenet/internal/host/link"
	"github.com/spin-stack/bridgenet/internal/host/netns"
)

// Config configures a Manager. Zero values select the production defaults.
type Config struct {
	// VethPrefix prefixes host veth names (default "veth").
	VethPrefix string

	// Toolkit performs link operations (default link.NewNetlink()).
	Toolkit link.Toolkit

	// Executor runs container-side work (default netns.Executor{}).
	Executor Executor

	// Records persists attachments. Nil disables recording.
	Records boltstore.Store[Attachment]
}

// inFlight marks a namespace path with an operation in progress.
type inFlight struct {
	done chan struct{} // closed when the operation completes
}

// Manager applies whole NetworkOptions requests: every network in a request
// is attached, or none is.
type Manager struct {
	attacher *Attacher
	detacher *Detacher
	records  boltstore.Store[Attachment]
	metrics  *Metrics

	inFlight   map[string]*inFlight
	inflightMu sync.Mutex
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Toolkit == nil {
		cfg.Toolkit = link.NewNetlink()
	}
	if cfg.Executor == nil {
		cfg.Executor = netns.Executor{}
	}

	metrics := &Metrics{}
	attacher := NewAttacher(cfg.Toolkit, cfg.Executor, cfg.VethPrefix)
	attacher.metrics = metrics

	return &Manager{
		attacher: attacher,
		detacher: NewDetacher(cfg.Toolkit, cfg.Executor),
		records:  cfg.Records,
		metrics:  metrics,
		inFlight: make(map[string]*inFlight),
	}
}

// Metrics returns the manager's live counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Close releases the record store, if any.
func (m *Manager) Close() error {
	if m.records == nil {
		return nil
	}
	return m.records.Close()
}

// Setup attaches the namespace at netnsPath to every network in opts and
// returns one StatusBlock per network name. Networks are attached in name
// order. If one fails, the networks already attached are detached again
// before the error is returned.
func (m *Manager) Setup(ctx context.Context, opts *NetworkOptions, netnsPath string) (map[string]StatusBlock, error) {
	if err := validateRequest(opts, netnsPath); err != nil {
		return nil, err
	}

	release, err := m.acquire(ctx, netnsPath)
	if err != nil {
		return nil, err
	}
	defer release()

	results := make(map[string]StatusBlock, len(opts.Networks))
	var attached []string

	for _, name := range sortedKeys(opts.Networks) {
		per := opts.Networks[name]
		network := opts.NetworkInfo[name]

		start := time.Now()
		status, hostVeth, err := m.attacher.attach(ctx, per, network, netnsPath)
		if err != nil {
			rolledBack := len(attached) > 0
			if rolledBack {
				m.rollback(ctx, opts, attached, netnsPath)
			}
			m.metrics.RecordAttach(false, rolledBack, time.Since(start))
			return nil, fmt.Errorf("attach network %s: %w", name, err)
		}
		m.metrics.RecordAttach(true, false, time.Since(start))

		results[name] = *status
		attached = append(attached, name)
		m.record(ctx, opts, netnsPath, name, hostVeth, status)

		log.G(ctx).WithFields(log.Fields{
			"network":   name,
			"interface": per.InterfaceName,
			"host_veth": hostVeth,
			"netns":     netnsPath,
		}).Info("network attached")
	}

	return results, nil
}

// Teardown removes the container interface of every network in
// opts.NetworkInfo and forgets their attachment records. It stops at the
// first interface that cannot be removed.
func (m *Manager) Teardown(ctx context.Context, opts *NetworkOptions, netnsPath string) error {
	release, err := m.acquire(ctx, netnsPath)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	err = m.detacher.Detach(ctx, opts, netnsPath)
	m.metrics.RecordDetach(err == nil, time.Since(start))
	if err != nil {
		return err
	}

	for _, name := range sortedKeys(opts.NetworkInfo) {
		m.forget(ctx, netnsPath, name)
	}

	log.G(ctx).WithFields(log.Fields{
		"netns":    netnsPath,
		"networks": len(opts.NetworkInfo),
	}).Info("networks detached")
	return nil
}

// Attachments lists the recorded attachments ordered by namespace and
// network. It returns nil when recording is disabled.
func (m *Manager) Attachments(ctx context.Context) ([]Attachment, error) {
	if m.records == nil {
		return nil, nil
	}

	var out []Attachment
	err := m.records.Scan(ctx, "", func(_ string, a *Attachment) error {
		out = append(out, *a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Netns != out[j].Netns {
			return out[i].Netns < out[j].Netns
		}
		return out[i].Network < out[j].Network
	})
	return out, nil
}

// acquire waits until no other operation is running for netnsPath and
// claims it. The returned func releases the claim.
func (m *Manager) acquire(ctx context.Context, netnsPath string) (func(), error) {
	for {
		m.inflightMu.Lock()
		op, busy := m.inFlight[netnsPath]
		if !busy {
			op = &inFlight{done: make(chan struct{})}
			m.inFlight[netnsPath] = op
			m.inflightMu.Unlock()

			return func() {
				m.inflightMu.Lock()
				delete(m.inFlight, netnsPath)
				m.inflightMu.Unlock()
				close(op.done)
			}, nil
		}
		m.inflightMu.Unlock()

		log.G(ctx).WithField("netns", netnsPath).Debug("waiting for in-flight operation on namespace")
		select {
		case <-op.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// rollback detaches each already attached network independently. Failures
// are logged and do not stop the remaining detaches.
func (m *Manager) rollback(ctx context.Context, opts *NetworkOptions, attached []string, netnsPath string) {
	for _, name := range attached {
		ifname := opts.Networks[name].InterfaceName
		if err := m.detacher.detachOne(ctx, name, ifname, netnsPath); err != nil {
			log.G(ctx).WithError(err).WithFields(log.Fields{
				"network":   name,
				"interface": ifname,
				"netns":     netnsPath,
			}).Warn("failed to roll back attached network")
			continue
		}
		m.forget(ctx, netnsPath, name)
	}
}

func (m *Manager) record(ctx context.Context, opts *NetworkOptions, netnsPath, name, hostVeth string, status *StatusBlock) {
	if m.records == nil {
		return
	}
	a := &Attachment{
		Netns:       netnsPath,
		ContainerID: opts.ContainerID,
		Network:     name,
		Bridge:      opts.NetworkInfo[name].NetworkInterface,
		Interface:   opts.Networks[name].InterfaceName,
		HostVeth:    hostVeth,
		Status:      *status,
		Created:     time.Now().UTC(),
	}
	if err := m.records.Set(ctx, recordKey(netnsPath, name), a); err != nil {
		log.G(ctx).WithError(err).WithField("network", name).Warn("failed to record attachment")
	}
}

func (m *Manager) forget(ctx context.Context, netnsPath, name string) {
	if m.records == nil {
		return
	}
	if err := m.records.Delete(ctx, recordKey(netnsPath, name)); err != nil && !errors.Is(err, boltstore.ErrNotFound) {
		log.G(ctx).WithError(err).WithField("network", name).Warn("failed to delete attachment record")
	}
}

// validateRequest checks everything that can be checked before any
// interface is touched.
func validateRequest(opts *NetworkOptions, netnsPath string) error {
	if opts == nil {
		return configError("setup", "", netnsPath, "no network options")
	}
	if netnsPath == "" {
		return configError("setup", "", "", "network namespace path is empty")
	}
	if len(opts.Networks) == 0 {
		return configError("setup", "", netnsPath, "no networks requested")
	}

	owners := make(map[string]string, len(opts.Networks))
	for _, name := range sortedKeys(opts.Networks) {
		ifname := opts.Networks[name].InterfaceName
		if _, ok := opts.NetworkInfo[name]; !ok {
			return configError("setup", ifname, netnsPath, "network %s is not defined", name)
		}
		if other, dup := owners[ifname]; dup {
			return configError("setup", ifname, netnsPath, "interface name used by networks %s and %s", other, name)
		}
		owners[ifname] = name
	}
	return nil
}

func recordKey(netnsPath, network string) string {
	return netnsPath + "#" + network
}
