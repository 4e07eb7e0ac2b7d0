package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════╗
    ║ ████████╗██████╗  █████╗ ██╗   ██╗███████╗██╗          ║
    ║ ╚══██╔══╝██╔══██╗██╔══██╗██║   ██║██╔════╝██║          ║
    ║    ██║   ██████╔╝███████║██║   ██║█████╗  ██║          ║
    ║    ██║   ██╔══██╗██╔══██║╚██╗ ██╔╝██╔══╝  ██║          ║
    ║    ██║   ██║  ██║██║  ██║ ╚████╔╝ ███████╗███████╗     ║
    ║    ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝  ╚═══╝  ╚══════╝╚══════╝     ║
    ║          CAPTIONS IN, COUNTRIES OUT - MAP BUILDER      ║
    ╚════════════════════════════════════════════════════════╝
`

var (
	quiet   atomic.Bool
	noColor atomic.Bool

	// Out receives all decorated output. Errors go to Err.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// SetQuietMode suppresses everything except errors
func SetQuietMode(enabled bool) { quiet.Store(enabled) }

// SetNoColor disables ANSI colors
func SetNoColor(disabled bool) { noColor.Store(disabled) }

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if quiet.Load() {
		return
	}
	fmt.Fprint(Out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		fmt.Fprintln(Err, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Err, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quiet.Load() {
		return
	}
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if quiet.Load() {
		return
	}
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quiet.Load() {
		return
	}
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		fmt.Fprintln(Out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quiet.Load() {
		return
	}
	fmt.Fprintln(Out, Magenta(msg))
}
