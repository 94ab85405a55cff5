package version

import "fmt"

const (
	// Maj is the major version number
	Maj = "0"
	// Min is the minor version number
	Min = "1"
	// Fix is the patch version number
	Fix = "0"
)

var (
	// Version is the full version string
	Version = fmt.Sprintf("%s.%s.%s", Maj, Min, Fix)

	// Flag for debugging. This is set to develop by default, and overwritten
	// at build time for releases.
	Flag = "develop"

	// GitCommit is set with: -ldflags "-X github.com/strandnet/strand/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if GitCommit != "" {
		Version += "-" + GitCommit[:8]
	}
}
