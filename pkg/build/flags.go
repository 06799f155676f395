// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for a Go application. It allows embedding metadata such as the application
// name, build timestamp, Git commit hash, and semantic version into the binary
// at compile time using linker flags, for example:
//
//	go build -ldflags "-X spectral/pkg/build.buildName=spectral -X spectral/pkg/build.buildVersion=0.1.0 ..."
package build

import "fmt"

// Description is the one-line summary shown in help output.
const Description = "Live semitone spectrum and stereo pan analysis"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Summary formats the version line shown by --version.
func (f *ldFlags) Summary() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Development builds keep the defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "spectral",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. It returns an error naming the first missing
// flag and leaves the defaults in place, so development builds still run.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
