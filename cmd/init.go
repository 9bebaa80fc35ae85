// outdir init [dir]
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/outdir/internal/config"
	"github.com/qobs-build/outdir/internal/msg"
	"github.com/spf13/cobra"
)

var errSettingsExist = errors.New(config.SettingsFilename + " already exists")

func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, strconv.Quote(it))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// defaultSettings renders the settings file that `init` writes. The first
// included subproject is the one every other subproject evaluates after.
func defaultSettings(include []string) string {
	var evalDeps []string
	if len(include) > 0 {
		evalDeps = []string{":" + strings.ReplaceAll(filepath.ToSlash(include[0]), "/", ":")}
	}

	return `[buildscript]
repositories = ["google", "mavenCentral"]
classpath = [
  "com.android.tools.build:gradle:8.2.0",
  "org.jetbrains.kotlin:kotlin-gradle-plugin:{{ ext.kotlin_version }}",
  "com.google.gms:google-services:4.4.1",
]

[buildscript.extra]
kotlin_version = "1.9.23"

[allprojects]
repositories = ["google", "mavenCentral"]

[allprojects.extra]
kotlin_version = "{{ ext.kotlin_version }}"

[allprojects.java]
source_compatibility = "17"
target_compatibility = "17"

[layout]
# relative to <root>/build
build_dir = "` + config.DefaultBuildDir + `"

[settings]
include = ` + quoteList(include) + `

[subprojects]
evaluation_depends_on = ` + quoteList(evalDeps) + `
`
}

// initIn writes a settings file into dir and creates the included subproject
// directories
func initIn(dir string, include []string) error {
	path := filepath.Join(dir, config.SettingsFilename)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w in %s", errSettingsExist, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, sp := range include {
		if err := os.MkdirAll(filepath.Join(dir, sp), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", sp, err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultSettings(include)), 0o644); err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	return nil
}

var flagInclude []string

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create " + config.SettingsFilename + " for a new root project",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		if err := initIn(dir, flagInclude); err != nil {
			msg.Fatal("%v", err)
		}
		fmt.Printf("\nRun %s to see where build outputs will go.\n", color.HiCyanString("outdir -C "+dir+" layout"))
	},
}

func init() {
	initCmd.Flags().StringSliceVarP(&flagInclude, "include", "i", []string{"app"}, "Subprojects to include")
	rootCmd.AddCommand(initCmd)
}
