// Package version holds photosearch build metadata, injected via ldflags by
// the release build (`go build -ldflags "-X .../version.Version=..."`).
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata in one line for the version command and
// the startup log.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
