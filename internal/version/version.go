package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at link time:
//
//	go build -ldflags="-X github.com/muurk/rfxcom/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/rfxcom/internal/version.Commit=abc123"
//
// Anything left empty is filled from the build info, then from a dev
// timestamp.
var (
	// Version is the release of both binaries
	Version = ""
	// Commit is the short git revision
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		populateFromBuildInfo()
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func populateFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	v, c := fromBuildInfo(info.Main.Version, info.Settings)
	if Version == "" {
		Version = v
	}
	if Commit == "" {
		Commit = c
	}
}

// fromBuildInfo derives a version and commit from the main module version
// and VCS settings. "go install ...@v1.2.3" builds carry the tag as the
// module version; local builds report "(devel)".
func fromBuildInfo(moduleVersion string, settings []debug.BuildSetting) (version, commit string) {
	var revision, vcsTime string
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		case "vcs.time":
			vcsTime = s.Value
		}
	}

	if revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if dirty {
			commit += "-dirty"
		}
	}

	switch {
	case moduleVersion != "" && moduleVersion != "(devel)":
		version = moduleVersion
	case vcsTime != "":
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			version = "dev-" + t.Format("20060102")
		}
	}
	return version, commit
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
