//go:build linux

// Package netns runs work inside Linux network namespaces.
//
// # Thread Model
//
// setns(2) changes the namespace of the calling OS thread only. Go multiplexes
// goroutines over threads, so switching a shared thread and switching it back
// would let unrelated goroutines observe the container namespace in between.
//
// Run never touches the caller's thread. Each call:
//  1. Opens the namespace file on the caller's goroutine
//  2. Starts a fresh goroutine and locks it to its OS thread
//  3. Enters the namespace as the first action on that thread
//  4. Runs the unit of work and hands the result back over a channel
//
// The worker never calls runtime.UnlockOSThread. When its goroutine returns,
// the runtime terminates the thread instead of returning it to the scheduler,
// so a switched thread is never reused.
//
// There is no cancellation: the caller blocks until the worker finishes.
package netns

import (
	"runtime"
	"runtime/debug"

	"github.com/vishvananda/netns"
)

// Executor runs units of work inside a network namespace.
// The zero value is ready to use.
type Executor struct{}

// Do runs fn inside the network namespace at path.
func (Executor) Do(path string, fn func() error) error {
	_, err := Run(path, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Check reports whether the namespace at path can be opened.
func (Executor) Check(path string) error {
	return Check(path)
}

// Open opens the namespace file at path. Failures are classified the same
// way Run classifies them. The caller closes the handle.
func Open(path string) (netns.NsHandle, error) {
	h, err := netns.GetFromPath(path)
	if err != nil {
		return netns.None(), openError(path, err)
	}
	return h, nil
}

// Check opens and closes the namespace at path.
func Check(path string) error {
	h, err := Open(path)
	if err != nil {
		return err
	}
	return h.Close()
}

// Run runs fn on a dedicated OS thread that has entered the network namespace
// at path, and returns its result.
//
// Errors:
//   - ErrNamespaceNotFound / ErrNamespaceUnavailable: path could not be opened
//   - ErrNamespaceSwitch: the worker could not enter the namespace; fn did not run
//   - ErrWorkerFailed: fn panicked or called runtime.Goexit
//
// Any other error is the one returned by fn.
func Run[T any](path string, fn func() (T, error)) (T, error) {
	var zero T

	target, err := Open(path)
	if err != nil {
		return zero, err
	}
	defer target.Close()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		// Intentionally never unlocked.
		runtime.LockOSThread()

		delivered := false
		defer func() {
			if delivered {
				return
			}
			done <- outcome{err: &WorkerError{
				Path:  path,
				Value: recover(),
				Stack: debug.Stack(),
			}}
		}()

		if err := netns.Set(target); err != nil {
			delivered = true
			done <- outcome{err: &Error{
				Op:       "setns",
				Path:     path,
				Cause:    err,
				Category: ErrNamespaceSwitch,
			}}
			return
		}

		value, err := fn()
		delivered = true
		done <- outcome{value: value, err: err}
	}()

	result := <-done
	return result.value, result.err
}
