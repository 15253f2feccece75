// Package version exposes the build identity stamped into the binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/socflash/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/socflash/internal/version.Commit=abc1234"
//
// Binaries built without ldflags (go install, local go build) derive both from
// the module build info instead.
var (
	// Version is the release version of the tool
	Version = ""
	// Commit is the short VCS revision the binary was built from
	Commit = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(info)
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fillFromBuildInfo(info *debug.BuildInfo) {
	// Module version is populated for 'go install module@version' builds.
	if Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	if Commit != "" {
		return
	}
	var revision string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		revision += "-dirty"
	}
	Commit = revision
}

// Full returns the version with the commit appended, for --version output.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
