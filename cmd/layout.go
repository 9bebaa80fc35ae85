// outdir layout
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/msg"
	"github.com/qobs-build/outdir/internal/project"
	"github.com/qobs-build/outdir/internal/task"
	"github.com/spf13/cobra"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTOML = "toml"
)

var flagFormat = NewEnumValue(FormatText, map[string]string{
	FormatText: "Human readable table (default)",
	FormatJSON: "JSON document",
	FormatTOML: "TOML document",
})

type projectView struct {
	Path                string   `json:"path" toml:"path"`
	Name                string   `json:"name" toml:"name"`
	Dir                 string   `json:"dir" toml:"dir"`
	BuildDir            string   `json:"build_dir" toml:"build_dir"`
	EvaluationDependsOn []string `json:"evaluation_depends_on,omitempty" toml:"evaluation_depends_on,omitempty"`
}

// preparedView is set once `prepare` has run against the layout
type preparedView struct {
	Invocation string    `json:"invocation" toml:"invocation"`
	Created    time.Time `json:"created" toml:"created"`
}

type layoutView struct {
	Root     string             `json:"root" toml:"root"`
	Offset   string             `json:"offset" toml:"offset"`
	BuildDir string             `json:"build_dir" toml:"build_dir"`
	Java     config.JavaSection `json:"java" toml:"java"`
	Prepared *preparedView      `json:"prepared,omitempty" toml:"prepared,omitempty"`
	Projects []projectView      `json:"projects" toml:"projects"`
}

// newLayoutView describes l. When only is set, the view lists just that
// project, looked up by path or name.
func newLayoutView(l *project.Layout, only string) (layoutView, error) {
	v := layoutView{
		Root:     l.Root.Dir,
		Offset:   l.Offset,
		BuildDir: l.Root.BuildDir,
		Java:     l.Root.Shared.Java,
	}

	stamp, err := task.ReadStamp(l.Root.BuildDir)
	switch {
	case err == nil:
		v.Prepared = &preparedView{Invocation: stamp.Invocation, Created: stamp.Created}
	case !errors.Is(err, os.ErrNotExist):
		msg.Warn("ignoring unreadable %s: %v", task.StampFilename, err)
	}

	projects := l.Projects()
	if only != "" {
		p, ok := l.Lookup(only)
		if !ok {
			return layoutView{}, fmt.Errorf("project %q not found (known: %s)", only, strings.Join(l.Order(), ", "))
		}
		projects = []project.Project{p}
	}

	for _, p := range projects {
		v.Projects = append(v.Projects, projectView{
			Path:                p.Path,
			Name:                p.Name,
			Dir:                 p.Dir,
			BuildDir:            p.BuildDir,
			EvaluationDependsOn: p.EvaluationDependsOn,
		})
	}
	return v, nil
}

// relTo shortens path relative to base for display, falling back to path
func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

func renderLayout(w io.Writer, l *project.Layout, format, only string) error {
	view, err := newLayoutView(l, only)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(view)
	case FormatText:
		if only != "" {
			// a single project prints its bare build directory for scripts
			_, err := fmt.Fprintln(w, view.Projects[0].BuildDir)
			return err
		}
		fmt.Fprintf(w, "%s %s (build_dir = %q, java %s/%s)\n", color.HiGreenString("Root"), view.Root, view.Offset,
			view.Java.SourceCompatibility, view.Java.TargetCompatibility)
		if view.Prepared != nil {
			fmt.Fprintf(w, "%s %s (invocation %s)\n", color.HiGreenString("Prepared"),
				view.Prepared.Created.Local().Format(time.DateTime), view.Prepared.Invocation)
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range view.Projects {
			fmt.Fprintf(tw, "  %s\t%s\n", color.HiCyanString(p.Path), relTo(view.Root, p.BuildDir))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

var layoutCmd = &cobra.Command{
	Use:   "layout [project]",
	Short: "Print the relocated build directories in evaluation order",
	Long: `Print the relocated build directories in evaluation order. With a project
path or name, only that project is shown; the text format then prints just
its build directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		only := ""
		if len(args) > 0 {
			only = args[0]
		}
		l, _ := mustLoadLayout()
		if err := renderLayout(os.Stdout, l, flagFormat.Value(), only); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	layoutCmd.Flags().VarP(&flagFormat, "format", "f", "Output format, one of "+flagFormat.HelpString())
	layoutCmd.RegisterFlagCompletionFunc("format", flagFormat.CompletionFunc())
	rootCmd.AddCommand(layoutCmd)
}
