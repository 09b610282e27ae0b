package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is set via ldflags:
	// go build -ldflags "-X github.com/r9s-ai/seo-router/internal/version.Version=v0.3.0"
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildDate is RFC3339, e.g. 2026-10-01T09:12:00Z.
	BuildDate = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns build info for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String formats Info for the version command.
func (i Info) String() string {
	return fmt.Sprintf(
		"seo-router %s\ncommit: %s\nbuilt at: %s\ngo version: %s\nplatform: %s",
		i.Version,
		i.Commit,
		i.BuildDate,
		i.GoVersion,
		i.Platform,
	)
}

// Short returns the version with an abbreviated commit, when known.
func Short() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return fmt.Sprintf("%s (%s)", Version, Commit[:7])
	}
	return Version
}
