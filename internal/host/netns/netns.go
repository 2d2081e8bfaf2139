//go:build linux

package netns

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// Dir is a directory holding bind-mounted named network namespaces.
type Dir string

// DefaultDir is where iproute2 keeps named network namespaces.
const DefaultDir Dir = "/var/run/netns"

// Path returns the path of the named network namespace in DefaultDir.
func Path(name string) string { return DefaultDir.Path(name) }

// Exists reports whether the named network namespace exists in DefaultDir.
func Exists(name string) bool { return DefaultDir.Exists(name) }

// Create creates a named network namespace in DefaultDir.
func Create(name string) (string, error) { return DefaultDir.Create(name) }

// Delete removes a named network namespace from DefaultDir.
func Delete(name string) error { return DefaultDir.Delete(name) }

// Path returns the path of the named network namespace.
func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

// Exists reports whether the named network namespace is mounted.
func (d Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

// Create creates a persistent named network namespace and returns its path.
// It fails with ErrNamespaceExists if the name is taken.
//
// The namespace is created on a throwaway OS thread, the same way Run
// enters one, so the calling thread never changes namespace.
func (d Dir) Create(name string) (string, error) {
	if d.Exists(name) {
		return "", &Error{Op: "create", Path: d.Path(name), Cause: os.ErrExist, Category: ErrNamespaceExists}
	}
	return d.create(name)
}

// Recreate is Create that first removes a namespace left under the same
// name.
func (d Dir) Recreate(name string) (string, error) {
	if d.Exists(name) {
		if err := d.Delete(name); err != nil {
			return "", err
		}
	}
	return d.create(name)
}

func (d Dir) create(name string) (string, error) {
	if err := os.MkdirAll(string(d), 0755); err != nil {
		return "", fmt.Errorf("failed to create netns directory: %w", err)
	}

	target := d.Path(name)
	errc := make(chan error, 1)
	go func() {
		// Intentionally never unlocked, see Run.
		runtime.LockOSThread()

		ns, err := netns.New()
		if err != nil {
			errc <- fmt.Errorf("failed to create new netns: %w", err)
			return
		}
		defer ns.Close()

		// /proc/self/ns/net names the thread group leader's namespace, not
		// this thread's, so mount through the handle instead.
		errc <- bindMount(fmt.Sprintf("/proc/self/fd/%d", int(ns)), target)
	}()
	if err := <-errc; err != nil {
		return "", err
	}

	if err := verify(target); err != nil {
		_ = d.Delete(name)
		return "", fmt.Errorf("netns verification failed: %w", err)
	}
	return target, nil
}

// Delete unmounts and removes the named network namespace.
func (d Dir) Delete(name string) error {
	target := d.Path(name)

	// Lazy unmount; a missing mount is not an error worth reporting.
	_ = unix.Unmount(target, unix.MNT_DETACH)

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove netns file: %w", err)
	}
	return nil
}

// verify checks that the namespace at path differs from the caller's.
func verify(path string) error {
	created, err := netns.GetFromPath(path)
	if err != nil {
		return fmt.Errorf("failed to open netns file: %w", err)
	}
	defer created.Close()

	host, err := netns.GetFromPath("/proc/self/ns/net")
	if err != nil {
		return fmt.Errorf("failed to open host netns: %w", err)
	}
	defer host.Close()

	if created.Equal(host) {
		return fmt.Errorf("created netns is the same as host netns (%s)", created.UniqueId())
	}
	return nil
}

func bindMount(source, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create netns file: %w", err)
	}
	f.Close()

	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		os.Remove(target)
		return fmt.Errorf("failed to bind mount netns: %w", err)
	}
	return nil
}
