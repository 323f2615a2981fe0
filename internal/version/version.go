// Package version reports which watchrun build is running. Release builds
// get their metadata through -ldflags; `go install` builds fall back to the
// module version recorded by the toolchain.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/hupe1980/watchrun/internal/version.version=v1.2.3".
var (
	version   = "dev"
	gitCommit = "none"
	buildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo collects the build metadata.
func GetInfo() Info {
	return Info{
		Version:   moduleVersion(version),
		GitCommit: shortCommit(gitCommit),
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// moduleVersion replaces the "dev" placeholder with the main module version
// when the binary was built by `go install module@version`.
func moduleVersion(v string) string {
	if v != "dev" {
		return v
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return v
	}

	return bi.Main.Version
}

// Semver is the version a task file's requires constraint is checked
// against: Version without its "v" prefix. Development builds yield "dev",
// which is not valid semver and disables the check.
func (i Info) Semver() string {
	return strings.TrimPrefix(i.Version, "v")
}

func (i Info) String() string {
	return fmt.Sprintf("watchrun %s (commit: %s, built: %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

// JSON renders Info for `watchrun version --json`.
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling version info: %w", err)
	}

	return string(data), nil
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}

	return commit
}
