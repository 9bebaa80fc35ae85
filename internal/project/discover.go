package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover expands [settings] include entries into subprojects. An entry is a
// directory relative to the root ("libs/core"), a project path (":libs:core")
// or a doublestar pattern ("libs/*"). Patterns only match directories;
// literal entries need not exist yet. Pattern matches inside the default build
// directory or inside buildDir are skipped.
func Discover(rootDir string, include []string, buildDir string) ([]Project, error) {
	var projects []Project
	seen := make(map[string]bool)

	add := func(rel string) error {
		rel = filepath.Clean(rel)
		if rel == "." || seen[rel] {
			return nil
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			return fmt.Errorf("subproject %q is outside of root project %s", rel, rootDir)
		}
		seen[rel] = true

		slashed := filepath.ToSlash(rel)
		projects = append(projects, Project{
			Name: filepath.Base(rel),
			Path: RootPath + strings.ReplaceAll(slashed, "/", ":"),
			Dir:  filepath.Join(rootDir, rel),
		})
		return nil
	}

	fsys := os.DirFS(rootDir)
	for _, entry := range include {
		entry = strings.TrimSpace(entry)
		if strings.HasPrefix(entry, RootPath) {
			entry = strings.ReplaceAll(strings.TrimPrefix(entry, RootPath), ":", "/")
		}

		if !isPattern(entry) {
			if err := checkDir(filepath.Join(rootDir, entry)); err != nil {
				return nil, err
			}
			if err := add(filepath.FromSlash(entry)); err != nil {
				return nil, err
			}
			continue
		}

		matches, err := doublestar.Glob(fsys, filepath.ToSlash(entry))
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", entry, err)
		}
		slices.Sort(matches)
		for _, match := range matches {
			stat, err := os.Stat(filepath.Join(rootDir, match))
			if err != nil {
				return nil, fmt.Errorf("while globbing %q: %w", entry, err)
			}
			if !stat.IsDir() || isBuildOutput(rootDir, buildDir, match) {
				continue
			}
			if err := add(filepath.FromSlash(match)); err != nil {
				return nil, err
			}
		}
	}

	return projects, nil
}

func isBuildOutput(rootDir, buildDir, match string) bool {
	dir := filepath.Join(rootDir, filepath.FromSlash(match))
	if within(filepath.Join(rootDir, DefaultBuildDirName), dir) {
		return true
	}
	return buildDir != "" && within(buildDir, dir)
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// checkDir fails if dir exists but is not a usable directory. A missing
// directory is fine.
func checkDir(dir string) error {
	stat, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("subproject %s is not a directory", dir)
	}
	return nil
}
