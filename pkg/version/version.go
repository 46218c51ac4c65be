// Package version exposes build metadata of the scrutinizer binary.
package version

import (
	"runtime/debug"
)

const unknown = "<unknown>"

// Build metadata, set through -ldflags "-X" at release time.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the embedded VCS stamp and
// Version from the module version when they were not set at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the metadata in one line.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
