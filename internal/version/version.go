// Package version carries build metadata injected with -ldflags.
package version

var (
	// Version is the engine release version.
	Version = "0.1.0"

	// GitCommit is the revision the binary was built from.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String returns a one-line version summary for logs and reports.
func String() string {
	return Version + " (" + GitCommit + ")"
}
