package workflowmeta

import "runtime"

// Version is the semantic version of the workflowmeta library.
const Version = "0.1.0"

// Stamped at build time via -ldflags; unset values read "unknown".
var (
	gitCommit = "unknown"
	buildTime = "unknown"
)

// BuildInfo describes the library version and the build that produced it.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
}

// Build returns the version together with its build metadata. GoVersion
// always reflects the toolchain the binary was compiled with.
func Build() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: gitCommit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}
