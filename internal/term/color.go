// Package term holds the terminal highlighting used for status lines.
package term

import (
	"github.com/fatih/color"
)

var (
	GreenHighlight  = color.New(color.FgGreen).SprintFunc()
	RedHighlight    = color.New(color.FgRed).SprintFunc()
	YellowHighlight = color.New(color.FgYellow).SprintFunc()
	CyanHighlight   = color.New(color.FgCyan).SprintFunc()

	Bold = color.New(color.Bold).SprintFunc()

	Highlight = CyanHighlight
)

// SetNoColor disables or re-enables colored output process-wide.
func SetNoColor(disabled bool) {
	color.NoColor = disabled
}

// Status renders a task or run outcome as OK or FAILED.
func Status(ok bool) string {
	if ok {
		return GreenHighlight("OK")
	}

	return RedHighlight("FAILED")
}

// Skipped renders the marker for tasks that did not run.
func Skipped() string {
	return YellowHighlight("SKIPPED")
}
