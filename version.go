/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package chainquery

import "runtime/debug"

const unknown = "unknown"

// Version information set by build flags
var (
	// Version is the semantic version of chainquery
	Version = "0.1.0"

	// GitCommit is the git commit hash (set by build flags)
	GitCommit = unknown

	// BuildDate is the build date (set by build flags)
	BuildDate = unknown

	// GoVersion is the Go version used to build
	GoVersion = unknown
)

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// GetVersionInfo returns the version information. Fields the linker left
// unset are filled from the binary's embedded build info when available.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}
	return info
}

func applyBuildInfo(info *VersionInfo, bi *debug.BuildInfo) {
	if info.GoVersion == unknown && bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	var revision, modified string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			if info.BuildDate == unknown && s.Value != "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			modified = s.Value
		}
	}
	if info.GitCommit == unknown && revision != "" {
		info.GitCommit = revision
		if modified == "true" {
			info.GitCommit += "-dirty"
		}
	}
}
