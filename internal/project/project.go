package project

import (
	"maps"
	"slices"

	"github.com/qobs-build/outdir/internal/config"
)

// DefaultBuildDirName is the build directory every project starts with, before
// relocation.
const DefaultBuildDirName = "build"

// RootPath is the project path of the root project.
const RootPath = ":"

// Project is one node of the build: the root project or a subproject.
type Project struct {
	Name string
	// Path is the colon separated project path, e.g. ":libs:core".
	Path     string
	Dir      string
	BuildDir string
	// EvaluationDependsOn lists project paths that must be configured first.
	EvaluationDependsOn []string
	Shared              Shared
}

// IsRoot reports whether p is the root project.
func (p Project) IsRoot() bool {
	return p.Path == RootPath
}

// Shared holds the settings that [allprojects] applies to every project.
// Each project gets its own copy.
type Shared struct {
	Repositories []string
	Extra        map[string]string
	Java         config.JavaSection
}

func newShared(cfg *config.Config) Shared {
	return Shared{
		Repositories: cfg.Allprojects.Repositories,
		Extra:        cfg.Allprojects.Extra,
		Java:         cfg.Allprojects.Java,
	}.clone()
}

func (s Shared) clone() Shared {
	return Shared{
		Repositories: slices.Clone(s.Repositories),
		Extra:        maps.Clone(s.Extra),
		Java:         s.Java,
	}
}
