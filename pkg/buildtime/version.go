// Package buildtime tells which build this binary is.
package buildtime

import (
	"runtime/debug"
)

// set with -ldflags "-X github.com/opst/netsec/pkg/buildtime.version=v1.2.3"
var version = "dev"

// version string when this netsec has been built.
func VERSION() string {
	return version
}

// GIT_REVISION is the commit stamped by the go toolchain, or "unknown".
func GIT_REVISION() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return "unknown"
}

func VersionString() string {
	return VERSION() + " (commit: " + GIT_REVISION() + ")"
}
