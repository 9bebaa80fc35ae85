package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(projects []Project) []string {
	var out []string
	for _, p := range projects {
		out = append(out, p.Path)
	}
	return out
}

func TestDiscoverLiteralAndPatterns(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "app", "libs/net", "libs/ui")
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs", "README.md"), nil, 0o644))

	projects, err := Discover(root, []string{"app", "libs/*", ":libs:net", "wear"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{":app", ":libs:net", ":libs:ui", ":wear"}, paths(projects))
	assert.Equal(t, filepath.Join(root, "wear"), projects[3].Dir)
}

func TestDiscoverRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	_, err := Discover(root, []string{"../outside"}, "")
	assert.Error(t, err)
}

func TestDiscoverRejectsFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app"), nil, 0o644))

	_, err := Discover(root, []string{"app"}, "")
	assert.Error(t, err)
}

func TestDiscoverBadPattern(t *testing.T) {
	_, err := Discover(t.TempDir(), []string{"libs/["}, "")
	assert.Error(t, err)
}

func TestDiscoverSkipsBuildOutputs(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "app", "core", "build/out/app", "out/app")

	projects, err := Discover(root, []string{"*", "**/app"}, filepath.Join(root, "out"))
	require.NoError(t, err)
	assert.Equal(t, []string{":app", ":core"}, paths(projects))

	// literal entries are taken as written
	projects, err = Discover(root, []string{"out"}, filepath.Join(root, "out"))
	require.NoError(t, err)
	assert.Equal(t, []string{":out"}, paths(projects))
}
