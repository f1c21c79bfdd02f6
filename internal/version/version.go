package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build identity recorded in tracks files and printed by
// "bigtracks version".
func String() string {
	return fmt.Sprintf("bigtracks %s (%s, built %s)", Version, GitSHA, BuildTime)
}
