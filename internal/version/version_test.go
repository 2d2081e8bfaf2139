package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v9.9.9"

	info := Info()
	for _, want := range []string{"v9.9.9", GitCommit, BuildDate, runtime.Version(), runtime.GOARCH} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() = %q, should contain %q", info, want)
		}
	}
	if !strings.HasPrefix(info, "v9.9.9 (") {
		t.Errorf("Info() = %q, should start with the version", info)
	}
}
