package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/graph"
	"github.com/qobs-build/outdir/internal/msg"
)

// Layout is the configured build: the root project and its subprojects with
// their relocated build directories. A Layout is not modified after Configure
// returns.
type Layout struct {
	Root Project
	// Subprojects are stored in evaluation order.
	Subprojects []Project
	// Offset is the build_dir the layout was relocated with.
	Offset string
}

// Relocate returns the root build directory for `offset`. A relative offset is
// resolved against the root project's default build directory, so the default
// "../../build" lands next to the root project directory.
func Relocate(rootDir, offset string) (string, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" {
		return "", errors.New("build directory offset must not be empty")
	}
	offset = filepath.FromSlash(offset)
	if filepath.IsAbs(offset) {
		return filepath.Clean(offset), nil
	}
	return filepath.Join(rootDir, DefaultBuildDirName, offset), nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false // different volumes
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// checkBuildDir rejects build directories that contain the root project,
// since cleaning them would delete sources.
func checkBuildDir(rootDir, buildDir string) error {
	if within(buildDir, rootDir) {
		return fmt.Errorf("build directory %s contains the root project %s", buildDir, rootDir)
	}
	return nil
}

// checkSubprojectDirs rejects a root build directory that overlaps a
// subproject's sources in either direction.
func checkSubprojectDirs(buildDir string, subprojects []Project) error {
	for _, p := range subprojects {
		if within(p.Dir, buildDir) {
			return fmt.Errorf("build directory %s is inside the sources of %s (%s)", buildDir, p.Path, p.Dir)
		}
		if within(buildDir, p.Dir) {
			return fmt.Errorf("build directory %s contains the sources of %s (%s)", buildDir, p.Path, p.Dir)
		}
	}
	return nil
}

// Configure discovers the subprojects of the root project in rootDir and
// relocates every build directory. The root is relocated first, then each
// subproject in evaluation order.
func Configure(rootDir string, cfg *config.Config) (*Layout, error) {
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	rootBuildDir, err := Relocate(rootDir, cfg.Layout.BuildDir)
	if err != nil {
		return nil, err
	}
	if err := checkBuildDir(rootDir, rootBuildDir); err != nil {
		return nil, err
	}
	shared := newShared(cfg)

	layout := &Layout{
		Root: Project{
			Name:     filepath.Base(rootDir),
			Path:     RootPath,
			Dir:      rootDir,
			BuildDir: rootBuildDir,
			Shared:   shared.clone(),
		},
		Offset: cfg.Layout.BuildDir,
	}
	msg.Debug("root project %s -> %s", rootDir, rootBuildDir)

	subprojects, err := Discover(rootDir, cfg.Settings.Include, rootBuildDir)
	if err != nil {
		return nil, err
	}
	if err := checkSubprojectDirs(rootBuildDir, subprojects); err != nil {
		return nil, err
	}
	if err := checkNameCollisions(subprojects); err != nil {
		return nil, err
	}

	for i := range subprojects {
		subprojects[i].EvaluationDependsOn = evaluationDeps(subprojects[i], cfg)
	}

	ordered, err := evaluationOrder(subprojects)
	if err != nil {
		return nil, err
	}

	for _, p := range ordered {
		p.BuildDir = filepath.Join(rootBuildDir, p.Name)
		p.Shared = shared.clone()
		msg.Debug("configured %s -> %s", p.Path, p.BuildDir)
		layout.Subprojects = append(layout.Subprojects, p)
	}

	return layout, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, RootPath) {
		p = RootPath + p
	}
	return p
}

// evaluationDeps merges [subprojects] and [projects.<name>] evaluation
// dependencies for p. Self references and the root are dropped; the root is
// always configured first.
func evaluationDeps(p Project, cfg *config.Config) []string {
	var deps []string
	all := slices.Clone(cfg.Subprojects.EvaluationDependsOn)
	for _, key := range []string{p.Name, p.Path} {
		if section, ok := cfg.Projects[key]; ok {
			all = append(all, section.EvaluationDependsOn...)
		}
	}
	for _, dep := range all {
		dep = normalizePath(dep)
		if dep == p.Path || dep == RootPath || slices.Contains(deps, dep) {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

func evaluationOrder(subprojects []Project) ([]Project, error) {
	byPath := make(map[string]Project, len(subprojects))
	paths := make([]string, 0, len(subprojects))
	deps := make(map[string][]string, len(subprojects))
	for _, p := range subprojects {
		byPath[p.Path] = p
		paths = append(paths, p.Path)
		deps[p.Path] = p.EvaluationDependsOn
	}

	for _, p := range subprojects {
		for _, dep := range p.EvaluationDependsOn {
			if _, ok := byPath[dep]; !ok {
				return nil, fmt.Errorf("project with path %q could not be found (evaluation dependency of %q)", dep, p.Path)
			}
		}
	}

	sorted, err := graph.TopoSort(paths, deps)
	if err != nil {
		return nil, fmt.Errorf("subproject evaluation order: %w", err)
	}

	ordered := make([]Project, 0, len(sorted))
	for _, path := range sorted {
		ordered = append(ordered, byPath[path])
	}
	return ordered, nil
}

func checkNameCollisions(subprojects []Project) error {
	byName := make(map[string]string)
	for _, p := range subprojects {
		if other, ok := byName[p.Name]; ok {
			return fmt.Errorf("subprojects %q and %q are both named %q and would share a build directory", other, p.Path, p.Name)
		}
		byName[p.Name] = p.Path
	}
	return nil
}

// WithOffset returns a copy of the layout relocated with a different offset.
// The evaluation order and project settings are unchanged.
func (l *Layout) WithOffset(offset string) (*Layout, error) {
	rootBuildDir, err := Relocate(l.Root.Dir, offset)
	if err != nil {
		return nil, err
	}
	if err := checkBuildDir(l.Root.Dir, rootBuildDir); err != nil {
		return nil, err
	}
	if err := checkSubprojectDirs(rootBuildDir, l.Subprojects); err != nil {
		return nil, err
	}

	out := &Layout{
		Root:        l.Root,
		Subprojects: slices.Clone(l.Subprojects),
		Offset:      offset,
	}
	out.Root.BuildDir = rootBuildDir
	for i := range out.Subprojects {
		out.Subprojects[i].BuildDir = filepath.Join(rootBuildDir, out.Subprojects[i].Name)
	}
	return out, nil
}

// Projects returns the root followed by the subprojects in evaluation order.
func (l *Layout) Projects() []Project {
	return append([]Project{l.Root}, l.Subprojects...)
}

// Order returns the project paths in evaluation order, root first.
func (l *Layout) Order() []string {
	order := []string{l.Root.Path}
	for _, p := range l.Subprojects {
		order = append(order, p.Path)
	}
	return order
}

// Lookup finds a project by path (":app") or name ("app").
func (l *Layout) Lookup(pathOrName string) (Project, bool) {
	for _, p := range l.Projects() {
		if p.Path == pathOrName || p.Name == pathOrName {
			return p, true
		}
	}
	return Project{}, false
}
