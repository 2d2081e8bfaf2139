//go:build linux

package netns

import (
	"errors"
	"fmt"
	"os"

	"github.com/containerd/errdefs"
)

// Sentinel errors for namespace-scoped execution.
// Use errors.Is() to check for these error categories.
var (
	// ErrNamespaceNotFound indicates the namespace file does not exist.
	ErrNamespaceNotFound = fmt.Errorf("network namespace not found: %w", errdefs.ErrNotFound)

	// ErrNamespaceExists indicates a named namespace is already mounted.
	ErrNamespaceExists = fmt.Errorf("network namespace already exists: %w", errdefs.ErrAlreadyExists)

	// ErrNamespaceUnavailable indicates the namespace file exists but could not be opened.
	ErrNamespaceUnavailable = errors.New("network namespace unavailable")

	// ErrNamespaceSwitch indicates the worker thread could not enter the namespace.
	// The worker is abandoned without running the unit of work.
	ErrNamespaceSwitch = errors.New("network namespace switch failed")

	// ErrWorkerFailed indicates the worker thread died instead of returning a result.
	ErrWorkerFailed = errors.New("namespace worker failed")
)

// Error describes a failure to reach a network namespace.
type Error struct {
	Op       string // "open", "setns" or "create"
	Path     string
	Cause    error
	Category error
}

func (e *Error) Error() string {
	return fmt.Sprintf("netns %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for category matching.
func (e *Error) Is(target error) bool {
	return e.Category != nil && errors.Is(e.Category, target)
}

// WorkerError reports a worker thread that panicked or exited via
// runtime.Goexit after entering the namespace.
type WorkerError struct {
	Path  string
	Value any // recovered panic value, nil for runtime.Goexit
	Stack []byte
}

func (e *WorkerError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("namespace worker for %s exited without a result", e.Path)
	}
	return fmt.Sprintf("namespace worker for %s panicked: %v", e.Path, e.Value)
}

// Is reports whether target is ErrWorkerFailed.
func (e *WorkerError) Is(target error) bool {
	return target == ErrWorkerFailed
}

func openError(path string, err error) error {
	category := ErrNamespaceUnavailable
	if errors.Is(err, os.ErrNotExist) {
		category = ErrNamespaceNotFound
	}
	return &Error{Op: "open", Path: path, Cause: err, Category: category}
}
