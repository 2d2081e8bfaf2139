// Package version reports the bridgenet build. The variables are set with
// -ldflags at build time:
//
//	go build -ldflags "-X github.com/spin-stack/bridgenet/internal/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildDate is an RFC3339 timestamp.
	BuildDate = "unknown"
)

// Info returns the full build description printed by --version.
func Info() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
