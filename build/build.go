// Package build reports which tickfsm binary is running. Release builds set
// Version and Commit with -ldflags; other builds fall back to the module
// information recorded by the Go toolchain.
package build

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/amp-labs/tickfsm/build.Version=...".
var (
	Version = ""
	Commit  = ""
)

const unknown = "dev"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"` //nolint:tagliatelle
	// Dependencies maps module paths to versions for the modules the
	// binary was linked with.
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

var current = sync.OnceValue(func() Info {
	bi, _ := debug.ReadBuildInfo()

	return fromBuildInfo(bi, Version, Commit)
})

// Current returns the build info of this process. It is computed once.
func Current() Info {
	return current()
}

func fromBuildInfo(bi *debug.BuildInfo, version, commit string) Info {
	info := Info{Version: version, Commit: commit}

	if bi == nil {
		if info.Version == "" {
			info.Version = unknown
		}

		return info
	}

	info.GoVersion = bi.GoVersion

	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = setting.Value
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	if len(bi.Deps) > 0 {
		info.Dependencies = make(map[string]string, len(bi.Deps))
		for _, dep := range bi.Deps {
			info.Dependencies[dep.Path] = dep.Version
		}
	}

	if info.Version == "" {
		info.Version = unknown
	}

	return info
}
