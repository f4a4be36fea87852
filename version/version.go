package version

import (
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Dependency is a module linked into the binary.
type Dependency struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info describes the running binary.
type Info struct {
	Version      string       `json:"version"`
	GitCommit    string       `json:"git_commit,omitempty"`
	GitBranch    string       `json:"git_branch,omitempty"`
	BuildTime    string       `json:"build_time,omitempty"`
	GoVersion    string       `json:"go_version,omitempty"`
	Module       string       `json:"module,omitempty"`
	Dirty        bool         `json:"dirty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Current returns the build information of the running binary. Link-time
// values win over embedded VCS settings.
func Current() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildTime: BuildTime,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	info.Module = bi.Main.Path
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
	for _, dep := range bi.Deps {
		d := dep
		if d.Replace != nil {
			d = d.Replace
		}
		info.Dependencies = append(info.Dependencies, Dependency{Path: dep.Path, Version: d.Version})
	}
	slices.SortFunc(info.Dependencies, func(a, b Dependency) int { return strings.Compare(a.Path, b.Path) })
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Release reports whether the binary was built from a tagged, clean tree.
func (i Info) Release() bool {
	return i.Version != "dev" && !i.Dirty && !strings.Contains(i.Version, "dirty")
}

// BuildDate parses BuildTime. It returns the zero time when BuildTime is
// unset or malformed.
func (i Info) BuildDate() time.Time {
	t, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Short returns "version-commit", marked dirty when the tree was modified.
func (i Info) Short() string {
	if i.GitCommit == "" {
		return i.Version
	}
	s := i.Version + "-" + i.GitCommit
	if i.Dirty {
		s += "-dirty"
	}
	return s
}

// String returns the short version plus a non-default branch and build date.
func (i Info) String() string {
	s := i.Short()
	if i.GitBranch != "" && i.GitBranch != "main" && i.GitBranch != "master" {
		s += " " + i.GitBranch
	}
	if d := i.BuildDate(); !d.IsZero() {
		s += fmt.Sprintf(" (built %s)", d.UTC().Format(time.RFC3339))
	}
	return s
}

// Dependency returns the linked version of module path.
func (i Info) Dependency(path string) (string, bool) {
	idx, ok := slices.BinarySearchFunc(i.Dependencies, path, func(d Dependency, p string) int {
		return strings.Compare(d.Path, p)
	})
	if !ok {
		return "", false
	}
	return i.Dependencies[idx].Version, true
}
