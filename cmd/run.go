// outdir run <task>..., outdir clean, outdir prepare, outdir resolve, outdir tasks
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/qobs-build/outdir/internal/msg"
	"github.com/qobs-build/outdir/internal/task"
	"github.com/spf13/cobra"
)

var flagJobs int

func taskOptions() task.Options {
	return task.Options{Jobs: flagJobs, Progress: os.Stdout}
}

func doRun(ctx context.Context, names ...string) {
	layout, cfg := mustLoadLayout()
	g, err := task.NewBuiltinGraph(layout, cfg, taskOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := g.Run(ctx, names...); err != nil {
		msg.Fatal("%v", err)
	}
}

// taskCommand exposes a single built-in task as a subcommand
func taskCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			doRun(cmd.Context(), name)
		},
	}
}

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks and their dependencies",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doRun(cmd.Context(), args...)
	},
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{task.Clean, task.Prepare, task.Resolve}, cobra.ShellCompDirectiveNoFileComp
	},
}

func printTasks(w io.Writer, g *task.Graph) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range g.Tasks() {
		fmt.Fprintf(tw, "%s\t%s\n", color.HiCyanString(t.Name), t.Description)
	}
	tw.Flush()
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the available tasks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		layout, cfg := mustLoadLayout()
		g, err := task.NewBuiltinGraph(layout, cfg, taskOptions())
		if err != nil {
			msg.Fatal("%v", err)
		}
		printTasks(os.Stdout, g)
	},
}

func init() {
	cleanCmd := taskCommand(task.Clean, "Delete the relocated build directory")
	prepareCmd := taskCommand(task.Prepare, "Create all build directories")
	resolveCmd := taskCommand(task.Resolve, "Check that the buildscript classpath can be resolved")

	for _, c := range []*cobra.Command{runCmd, resolveCmd} {
		c.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "Number of concurrent repository lookups (default: number of CPUs)")
	}

	rootCmd.AddCommand(runCmd, cleanCmd, prepareCmd, resolveCmd, tasksCmd)
}
