package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headColor    = color.New(color.FgMagenta, color.Bold)
	keyColor     = color.New(color.FgYellow)
	weightColor  = color.New(color.FgGreen, color.Bold)
)

// Success displays a success message.
func Success(format string, args ...interface{}) {
	successColor.Fprintf(Out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	errorColor.Fprintf(Err, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	warnColor.Fprintf(Out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	infoColor.Fprintf(Out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Section displays a section header.
func Section(title string) {
	headColor.Fprintf(Out, "━━━ %s ━━━\n", strings.ToUpper(title))
}

// KeyValue prints one aligned "key: value" line.
func KeyValue(key string, value interface{}) {
	keyColor.Fprintf(Out, "  %-16s", key+":")
	fmt.Fprintf(Out, " %v\n", value)
}

// Weight prints the headline mass.
func Weight(kg float64) {
	fmt.Fprint(Out, "\n  Weight: ")
	weightColor.Fprintf(Out, "%.3f kg\n\n", kg)
}

// Table displays rows under headers, aligned with tabwriter.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// FormatMM renders an optional length, "-" when absent.
func FormatMM(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f mm", *v)
}
