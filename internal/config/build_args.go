package config

import "fmt"

// The following vars are set at build time through ldflags, e.g.
// go build -ldflags "-X github/chapool/go-stark-signer/internal/config.Commit=$(git rev-parse HEAD)".
var (
	ModuleName = "go-stark-signer"
	Commit     = "< 40 chars git commit hash via ldflags >"
	BuildDate  = "1970-01-01T00:00:00+00:00"
)

// GetFormattedBuildArgs returns the build metadata for the version command.
func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
