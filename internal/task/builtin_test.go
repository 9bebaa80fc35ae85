package task

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/project"
	"github.com/qobs-build/outdir/internal/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configuredLayout(t *testing.T, subprojects ...string) (*project.Layout, *config.Config) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "repo", "android")
	for _, sp := range subprojects {
		require.NoError(t, os.MkdirAll(filepath.Join(root, sp), 0o755))
	}
	cfg := config.Default()
	cfg.Settings.Include = subprojects
	layout, err := project.Configure(root, cfg)
	require.NoError(t, err)
	return layout, cfg
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestCleanRemovesBuildDirectory(t *testing.T) {
	layout, cfg := configuredLayout(t, "app", "core")
	artifact := filepath.Join(layout.Subprojects[0].BuildDir, "outputs", "apk", "app-debug.apk")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, []byte("apk"), 0o644))

	g, err := NewBuiltinGraph(layout, cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), Clean))

	assert.False(t, exists(t, layout.Root.BuildDir))
	// sources are untouched
	assert.True(t, exists(t, layout.Subprojects[0].Dir))
}

func TestCleanMissingDirectoryIsNoop(t *testing.T) {
	layout, _ := configuredLayout(t, "app")
	require.False(t, exists(t, layout.Root.BuildDir))

	require.NoError(t, CleanLayout(layout))
	require.NoError(t, CleanLayout(layout))
	assert.False(t, exists(t, layout.Root.BuildDir))
}

func TestCleanFailureIsReported(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can delete read-only directories")
	}
	layout, _ := configuredLayout(t, "app")
	locked := filepath.Join(layout.Root.BuildDir, "app")
	require.NoError(t, os.MkdirAll(filepath.Join(locked, "intermediates"), 0o755))
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	err := CleanLayout(layout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not delete")
}

func TestCleanRemovalErrorFailsTask(t *testing.T) {
	layout, cfg := configuredLayout(t, "app")
	require.NoError(t, os.MkdirAll(layout.Subprojects[0].BuildDir, 0o755))

	var removed []string
	removeAll = func(path string) error {
		removed = append(removed, path)
		return &os.PathError{Op: "unlinkat", Path: path, Err: fs.ErrPermission}
	}
	t.Cleanup(func() { removeAll = os.RemoveAll })

	g, err := NewBuiltinGraph(layout, cfg, Options{})
	require.NoError(t, err)

	err = g.Run(context.Background(), Clean)
	require.ErrorIs(t, err, fs.ErrPermission)
	assert.Contains(t, err.Error(), `task "clean"`)
	assert.Contains(t, err.Error(), "could not delete")
	assert.Equal(t, []string{layout.Root.BuildDir}, removed)
	assert.True(t, exists(t, layout.Root.BuildDir))
}

func TestPrepareCreatesDirectoriesAndStamp(t *testing.T) {
	layout, _ := configuredLayout(t, "app", "core")
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	stamp, err := PrepareLayout(layout, now)
	require.NoError(t, err)

	for _, p := range layout.Projects() {
		assert.True(t, exists(t, p.BuildDir), p.Path)
	}
	assert.Len(t, stamp.Invocation, 36)
	assert.Equal(t, []string{":", ":app", ":core"}, stamp.Order)

	read, err := ReadStamp(layout.Root.BuildDir)
	require.NoError(t, err)
	assert.Equal(t, stamp.Invocation, read.Invocation)
	assert.True(t, now.Equal(read.Created))
	assert.Equal(t, layout.Subprojects[1].BuildDir, read.BuildDirs[":core"])
	assert.Equal(t, "../../build", read.Offset)

	// a second prepare is a new invocation
	again, err := PrepareLayout(layout, now)
	require.NoError(t, err)
	assert.NotEqual(t, stamp.Invocation, again.Invocation)
}

func TestResolveTask(t *testing.T) {
	pom := "/com/google/gms/google-services/4.4.1/google-services-4.4.1.pom"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pom {
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	layout, cfg := configuredLayout(t)
	cfg.Buildscript.Repositories = []string{srv.URL}
	cfg.Buildscript.Classpath = []string{"com.google.gms:google-services:4.4.1"}

	var progress bytes.Buffer
	g, err := NewBuiltinGraph(layout, cfg, Options{Client: srv.Client(), Jobs: 2, Progress: &progress})
	require.NoError(t, err)
	require.NoError(t, g.Run(context.Background(), Resolve))
	assert.Contains(t, progress.String(), "1/1")

	cfg.Buildscript.Classpath = append(cfg.Buildscript.Classpath, "org.example:missing:1.0")
	err = g.Run(context.Background(), Resolve)
	require.ErrorIs(t, err, resolve.ErrNotFound)
	assert.Contains(t, err.Error(), `task "resolve"`)
}

func TestResolveWithoutClasspath(t *testing.T) {
	_, cfg := configuredLayout(t)
	res, err := ResolveClasspath(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Empty(t, res)
}
