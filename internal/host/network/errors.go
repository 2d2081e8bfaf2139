//go:build linux

package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/spin-stack/bridgenet/internal/host/link"
	"github.com/spin-stack/bridgenet/internal/host/netns"
)

// Sentinel errors for attach and detach.
// Use errors.Is() to check for these error categories. Namespace failures
// keep their own categories from the netns package (ErrNamespaceNotFound,
// ErrNamespaceSwitch, ErrWorkerFailed).
var (
	// ErrInvalidConfig indicates the request cannot be applied as given.
	// No interface has been touched when it is returned.
	ErrInvalidConfig = fmt.Errorf("invalid network configuration: %w", errdefs.ErrInvalidArgument)

	// ErrLinkOperation indicates a bridge, veth, address or link call failed.
	ErrLinkOperation = errors.New("link operation failed")
)

// Error records which step failed, on which interface and namespace.
type Error struct {
	Op        string // e.g. "configure bridge", "assign address"
	Interface string
	Netns     string
	Cause     error
	Category  error // ErrInvalidConfig, ErrLinkOperation, or nil for namespace failures
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Interface != "" {
		b.WriteString(" ")
		b.WriteString(e.Interface)
	}
	if e.Netns != "" {
		fmt.Fprintf(&b, " (netns %s)", e.Netns)
	}
	fmt.Fprintf(&b, ": %v", e.Cause)
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for category matching. A missing interface also
// matches errdefs.ErrNotFound.
func (e *Error) Is(target error) bool {
	if e.Category != nil && errors.Is(e.Category, target) {
		return true
	}
	return target == errdefs.ErrNotFound && e.Category == ErrLinkOperation && link.IsNotFound(e.Cause)
}

func configError(op, iface, netnsPath string, format string, args ...any) error {
	return &Error{
		Op:        op,
		Interface: iface,
		Netns:     netnsPath,
		Cause:     fmt.Errorf(format, args...),
		Category:  ErrInvalidConfig,
	}
}

// stepError wraps a failure of a toolkit or executor step. Errors that
// already carry step context pass through unchanged.
func stepError(op, iface, netnsPath string, err error) error {
	var stepErr *Error
	if errors.As(err, &stepErr) {
		return err
	}
	category := ErrLinkOperation
	if isNamespaceError(err) {
		category = nil
	}
	return &Error{Op: op, Interface: iface, Netns: netnsPath, Cause: err, Category: category}
}

func isNamespaceError(err error) bool {
	var nsErr *netns.Error
	var workerErr *netns.WorkerError
	return errors.As(err, &nsErr) || errors.As(err, &workerErr)
}
