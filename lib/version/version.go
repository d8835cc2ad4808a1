// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Build describes one binary.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildTime string
	GoVersion string
}

// Current returns the running binary's build, preferring injected
// values over the embedded VCS stamp.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build = withSettings(build, info.Settings)
	}
	return build
}

func withSettings(build Build, settings []debug.BuildSetting) Build {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if build.Commit == "unknown" && setting.Value != "" {
				build.Commit = setting.Value
				if len(build.Commit) > 12 {
					build.Commit = build.Commit[:12]
				}
			}
		case "vcs.time":
			if build.BuildTime == "unknown" && setting.Value != "" {
				build.BuildTime = setting.Value
			}
		case "vcs.modified":
			build.Dirty = setting.Value == "true"
		}
	}
	return build
}

// String formats the build as "0.1.0-dev (abc1234-dirty, 2026-01-02T03:04:05Z)".
func (b Build) String() string {
	dirty := ""
	if b.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", b.Version, b.Commit, dirty, b.BuildTime)
}

// Full adds the Go version and platform.
func (b Build) Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s", b, b.GoVersion, runtime.GOOS, runtime.GOARCH)
}
