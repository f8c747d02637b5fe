// Package version exposes the build metadata stamped into the binary.
// The management /version endpoint and the CLI version command both
// serve what Current returns.
package version

import (
	"fmt"
	"strings"
)

const (
	// Unknown marks build metadata the linker did not stamp.
	Unknown = "unknown"
	// DevelopmentVersion is what local, unstamped builds report.
	DevelopmentVersion = "dev"
)

// Overridden at build time, for example:
//
//	go build -ldflags="-X github.com/crudkit/crudkit/pkg/version.AppVersion=v1.2.3"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info is the version payload served to clients.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current combines the stamped build metadata with the service name.
// Blank values fall back to their defaults so the payload never carries
// empty fields.
func Current(serviceName string) Info {
	return Info{
		Service:   orDefault(serviceName, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
	}
}

// String returns a log-friendly one-liner.
func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s)", i.Service, i.Version, i.Commit, i.BuildTime)
}

func orDefault(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
