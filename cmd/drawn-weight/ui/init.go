// Package ui renders drawn-weight CLI output.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Out receives results; Err receives progress and diagnostics.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	verboseFlag bool
)

// InitUI applies the color and verbosity flags.
func InitUI(noColor, verbose bool) {
	verboseFlag = verbose
	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether --verbose was set.
func Verbose() bool {
	return verboseFlag
}

// SetOutput redirects both streams, for tests.
func SetOutput(out, err io.Writer) {
	Out, Err = out, err
}
