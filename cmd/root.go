// outdir [command]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/msg"
	"github.com/qobs-build/outdir/internal/project"
	"github.com/qobs-build/outdir/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	flagDir      string
	flagBuildDir string
	flagVerbose  bool
	flagNoColor  bool
)

// loadLayout finds the root project starting at dir, parses its settings and
// configures the layout. offset, when not empty, replaces [layout] build_dir.
func loadLayout(dir, offset string) (*project.Layout, *config.Config, error) {
	root, err := workspace.FindRoot(dir)
	if err != nil {
		return nil, nil, err
	}
	msg.Debug("root project: %s", root)

	cfg, err := config.ParseConfigFromFile(filepath.Join(root, config.SettingsFilename), config.NewConfigEnv())
	if err != nil {
		return nil, nil, err
	}
	if offset != "" {
		cfg.Layout.BuildDir = offset
	}

	layout, err := project.Configure(root, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("configuring %s: %w", root, err)
	}
	return layout, cfg, nil
}

// mustLoadLayout is loadLayout for command handlers
func mustLoadLayout() (*project.Layout, *config.Config) {
	layout, cfg, err := loadLayout(flagDir, flagBuildDir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return layout, cfg
}

var rootCmd = &cobra.Command{
	Use:   "outdir",
	Short: "Relocates build outputs of multi-project trees",
	Long: `outdir moves the build directory of a root project and all of its
subprojects to a shared location outside of the source tree, and runs
housekeeping tasks such as clean against it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Verbose = flagVerbose
		if flagNoColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", ".", "Start looking for "+config.SettingsFilename+" in this directory")
	rootCmd.PersistentFlags().StringVar(&flagBuildDir, "build-dir", "", "Override [layout] build_dir")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
