package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time through -ldflags.
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info is the build identity served by the version command and /version.
type Info struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit,omitempty"`
	BuildTime time.Time `json:"buildTime,omitzero"`
	GoVersion string    `json:"goVersion"`
	Modified  bool      `json:"modified,omitempty"`
	Platform  string    `json:"platform"`
}

// Get assembles the build identity. Stamped values win over embedded VCS
// settings; a module version from `go install` replaces "dev".
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t.UTC()
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		case "vcs.time":
			if info.BuildTime.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildTime = t.UTC()
				}
			}
		}
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Short renders "version", "version+commit" or "version+commit.dirty".
func (i Info) Short() string {
	if i.Commit == "" {
		return i.Version
	}
	s := i.Version + "+" + i.Commit
	if i.Modified {
		s += ".dirty"
	}
	return s
}

// String renders the identity on one line for the version command.
func (i Info) String() string {
	s := fmt.Sprintf("nodeflow %s (%s, %s)", i.Short(), i.GoVersion, i.Platform)
	if !i.BuildTime.IsZero() {
		s += " built " + i.BuildTime.Format(time.RFC3339)
	}
	return s
}
