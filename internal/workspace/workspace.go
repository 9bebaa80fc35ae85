// Package workspace locates the root project of a source tree.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/outdir/internal/config"
)

var ErrSettingsNotFound = errors.New("no " + config.SettingsFilename + " found")

// FindRoot walks up from start until it finds a directory holding the settings
// file. The search never leaves the git worktree that contains start, if any.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	boundary := GitTopLevel(dir)

	for {
		stat, err := os.Stat(filepath.Join(dir, config.SettingsFilename))
		if err == nil && !stat.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		if dir == boundary {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w in %s or any parent directory", ErrSettingsNotFound, start)
}

// GitTopLevel returns the root of the git worktree containing dir, or "" when
// dir is not inside one.
func GitTopLevel(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "" // bare repository
	}
	top, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return ""
	}
	return top
}
