package lancar

import (
	"fmt"
	"runtime"
)

// Build metadata. Release builds set these with
//
//	go build -ldflags "-X github.com/ambiyansyah-risyal/lancar.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion is the one-line banner printed by `lancar --version`.
func GetVersion() string {
	return fmt.Sprintf("lancar %s (%s, built %s, %s)",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns the build metadata as zap-friendly key/value pairs.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}

// UserAgent identifies lancar in outgoing requests, e.g. "lancar/0.3.0".
func UserAgent() string {
	return "lancar/" + Version
}
