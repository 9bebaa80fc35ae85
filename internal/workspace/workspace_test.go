package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v6"
	"github.com/qobs-build/outdir/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, elem ...string) {
	t.Helper()
	path := filepath.Join(elem...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

// realDir resolves symlinks, e.g. /var -> /private/var on macOS.
func realDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestFindRootWalksUp(t *testing.T) {
	root := realDir(t)
	touch(t, root, "android", config.SettingsFilename)
	nested := filepath.Join(root, "android", "app", "src", "main")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "android"), got)

	got, err = FindRoot(filepath.Join(root, "android"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "android"), got)
}

func TestFindRootStopsAtGitTopLevel(t *testing.T) {
	outer := realDir(t)
	touch(t, outer, config.SettingsFilename)

	repoDir := filepath.Join(outer, "repo")
	_, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	nested := filepath.Join(repoDir, "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, repoDir, GitTopLevel(nested))

	_, err = FindRoot(nested)
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	touch(t, repoDir, config.SettingsFilename)
	got, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, repoDir, got)
}
