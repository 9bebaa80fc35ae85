package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Output receives every message. Tests swap it for a buffer.
	Output io.Writer = os.Stdout
	// Verbose enables Debug output.
	Verbose bool

	exit = os.Exit
)

func emit(label, format string, a ...any) {
	fmt.Fprint(Output, label)
	fmt.Fprint(Output, ": ")
	fmt.Fprintf(Output, format, a...)
	fmt.Fprint(Output, "\n")
}

func Error(format string, a ...any) {
	emit(color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	emit(color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(color.RedString("fatal"), format, a...)
	exit(1)
}

func Info(format string, a ...any) {
	emit(color.HiGreenString("info"), format, a...)
}

func Debug(format string, a ...any) {
	if !Verbose {
		return
	}
	emit(color.HiBlackString("debug"), format, a...)
}

// Action prints a right-aligned verb followed by a subject, cargo style:
//
//	Removing /src/build
func Action(verb, format string, a ...any) {
	fmt.Fprintf(Output, "%12s %s\n", color.HiGreenString(verb), fmt.Sprintf(format, a...))
}
