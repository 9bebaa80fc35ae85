package task

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/msg"
	"github.com/qobs-build/outdir/internal/project"
	"github.com/qobs-build/outdir/internal/resolve"
)

const (
	Clean   = "clean"
	Prepare = "prepare"
	Resolve = "resolve"
)

// StampFilename is written into the root build directory by `prepare`.
const StampFilename = "outdir-layout.json"

var removeAll = os.RemoveAll

// Options tune the built-in tasks.
type Options struct {
	// Client is used by `resolve`. Defaults to http.DefaultClient.
	Client *http.Client
	// Jobs bounds concurrent lookups in `resolve`.
	Jobs int
	// Progress receives the `resolve` progress bar. Nil disables it.
	Progress io.Writer
}

// NewBuiltinGraph returns a graph with `clean`, `prepare` and `resolve`
// registered against layout.
func NewBuiltinGraph(layout *project.Layout, cfg *config.Config, opts Options) (*Graph, error) {
	g := NewGraph()
	tasks := []Task{
		{
			Name:        Clean,
			Description: "Deletes the root build directory",
			Action: func(ctx context.Context) error {
				return CleanLayout(layout)
			},
		},
		{
			Name:        Prepare,
			Description: "Creates every build directory and records the layout",
			Action: func(ctx context.Context) error {
				_, err := PrepareLayout(layout, time.Now())
				return err
			},
		},
		{
			Name:        Resolve,
			Description: "Checks that the buildscript classpath exists in the declared repositories",
			Action: func(ctx context.Context) error {
				_, err := ResolveClasspath(ctx, cfg, opts)
				return err
			},
		},
	}
	for _, t := range tasks {
		if err := g.Register(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// CleanLayout removes the root build directory and everything below it. A
// missing directory is not an error.
func CleanLayout(layout *project.Layout) error {
	dir := layout.Root.BuildDir
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		msg.Debug("%s does not exist, nothing to clean", dir)
		return nil
	}
	msg.Action("Removing", "%s", dir)
	if err := removeAll(dir); err != nil {
		return fmt.Errorf("could not delete %s: %w", dir, err)
	}
	return nil
}

// Stamp describes a prepared layout
type Stamp struct {
	Invocation string            `json:"invocation"`
	Created    time.Time         `json:"created"`
	Root       string            `json:"root"`
	Offset     string            `json:"offset"`
	Order      []string          `json:"order"`
	BuildDirs  map[string]string `json:"build_dirs"` // project path -> build dir
}

// PrepareLayout creates the root build directory and one directory per
// subproject, then writes a Stamp into the root build directory.
func PrepareLayout(layout *project.Layout, now time.Time) (*Stamp, error) {
	stamp := &Stamp{
		Invocation: uuid.NewString(),
		Created:    now.UTC(),
		Root:       layout.Root.Dir,
		Offset:     layout.Offset,
		Order:      layout.Order(),
		BuildDirs:  make(map[string]string),
	}

	for _, p := range layout.Projects() {
		if err := os.MkdirAll(p.BuildDir, 0o755); err != nil {
			return nil, fmt.Errorf("create build directory for %s: %w", p.Path, err)
		}
		stamp.BuildDirs[p.Path] = p.BuildDir
	}

	path := filepath.Join(layout.Root.BuildDir, StampFilename)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stamp); err != nil {
		return nil, err
	}
	if err := bufw.Flush(); err != nil {
		return nil, err
	}

	msg.Action("Prepared", "%d build directories under %s", len(stamp.BuildDirs), layout.Root.BuildDir)
	return stamp, nil
}

// ReadStamp loads the stamp written by PrepareLayout from a root build directory
func ReadStamp(buildDir string) (*Stamp, error) {
	f, err := os.Open(filepath.Join(buildDir, StampFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stamp := new(Stamp)
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(stamp); err != nil {
		return nil, fmt.Errorf("%s: %w", StampFilename, err)
	}
	return stamp, nil
}

// ResolveClasspath checks every [buildscript] classpath coordinate against the
// [buildscript] repositories.
func ResolveClasspath(ctx context.Context, cfg *config.Config, opts Options) ([]resolve.Resolution, error) {
	var repos []resolve.Repository
	for _, name := range cfg.Buildscript.Repositories {
		repo, err := resolve.ParseRepository(name)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}

	var coords []resolve.Coordinate
	for _, s := range cfg.Buildscript.Classpath {
		c, err := resolve.ParseCoordinate(s)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}

	if len(coords) == 0 {
		msg.Info("no classpath dependencies declared")
		return nil, nil
	}

	r := resolve.NewResolver(repos)
	if opts.Client != nil {
		r.Client = opts.Client
	}
	if opts.Jobs > 0 {
		r.Jobs = opts.Jobs
	}

	var pb *msg.ProgressBar
	if opts.Progress != nil {
		pb = msg.NewProgressBar(len(coords), 4, opts.Progress)
		r.OnResolved = func(resolve.Resolution) { pb.Step() }
	}

	res, err := r.Resolve(ctx, coords)
	if pb != nil {
		pb.Finish()
	}
	if err != nil {
		return nil, err
	}

	for _, rr := range res {
		msg.Debug("%s -> %s", rr.Coordinate, rr.URL)
	}
	msg.Info("resolved %d classpath dependencies", len(res))
	return res, nil
}
