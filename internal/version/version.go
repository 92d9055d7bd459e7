// Package version carries the build identity of the VibeScape backend.
package version

import (
	"fmt"
	"runtime"
)

// Overridden with -ldflags "-X github.com/vibescape/vibescape-backend/internal/version.Version=..."
var (
	Name      = "VibeScape"
	Version   = "1.0.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is served by GET /api/v1/version.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the identity of the running binary.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		GoVersion: runtime.Version(),
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// ShortCommit returns the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	return i.GitCommit[:min(7, len(i.GitCommit))]
}

// String renders the startup banner line.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += " (" + i.ShortCommit() + ")"
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}

// UserAgent is sent on outbound HTTP requests, e.g. "VibeScape/1.0.0".
func UserAgent() string {
	return Name + "/" + Version
}
