// Package buildinfo reports pygr's own version, derived from Go's
// embedded build metadata rather than a hand-maintained constant.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

const shortHashLen = 12

// Version returns this binary's version: the VCS tag for a release
// build (e.g. "v0.3.0"), or a "dev-<hash>[-dirty]" pseudo-version for a
// local build, or "unknown" if the runtime can't read build info at
// all.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return devVersion(info)
}

func devVersion(info *debug.BuildInfo) string {
	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return "dev"
	}
	if len(revision) > shortHashLen {
		revision = revision[:shortHashLen]
	}

	v := fmt.Sprintf("dev-%s", revision)
	if dirty {
		v += "-dirty"
	}
	return v
}
