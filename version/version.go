// Package version reports the toolkit's build identity. The variables
// are meant to be stamped at build time:
//
//	go build -ldflags "-X github.com/temporalab/modelconf/version.version=1.0.0"
//
// Unstamped binaries fall back to module build info embedded by the
// Go toolchain.
package version

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
)

// Stamped via -ldflags.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the stamped version, or the module version from
// build info when the binary was installed with `go install`.
func GetVersion() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return devVersion
}

// buildSetting reads one key from the debug build settings.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// commit prefers the stamped commit and falls back to the VCS revision
// recorded in build info, shortened to the usual seven characters.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	rev := buildSetting("vcs.revision")
	if len(rev) > shortCommitLen {
		rev = rev[:shortCommitLen]
	}
	return rev
}

// GetVersionInfo renders the multi-line output of the version command.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "modelconf version %s", GetVersion())
	if c := commit(); c != "" {
		fmt.Fprintf(&b, "\ncommit: %s", c)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}

// GetBuildInfo returns the build identity as slog key-value pairs.
func GetBuildInfo() []any {
	attrs := []any{"version", GetVersion()}
	if c := commit(); c != "" {
		attrs = append(attrs, "commit", c)
	}
	if gitCommit == "" && buildSetting("vcs.modified") == "true" {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}
	return attrs
}

// LogStartup records the build identity at debug level through the
// default logger; it only shows up when the process runs verbose.
func LogStartup() {
	slog.Debug("modelconf starting", GetBuildInfo()...)
}
