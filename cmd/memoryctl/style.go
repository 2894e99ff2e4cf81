package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

// Colors follow an accent/warn/pass/muted palette: accent for headers, warn for
// conflicts/errors, pass for allow=true, muted for borders and secondary text.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#6124DF", Dark: "#9D7CF5"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#C4392C", Dark: "#E8685A"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#1C7A3C", Dark: "#4FD47C"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9A9A9A"}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	borderStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// colorEnabled gates styled/glamour rendering on the terminal's actual color support,
// so piping memoryctl's output never leaves ANSI codes in a log file or a script-test
// golden file.
func colorEnabled() bool {
	return termenv.NewOutput(nil).ColorProfile() != termenv.Ascii
}

// renderTable builds a bordered table from a batch of pre-built rows
// (Border/BorderStyle/Headers/Rows/StyleFunc/String, not the incremental Row API) and
// returns its rendered form.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Align(lipgloss.Center)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

// renderMarkdown renders md through glamour when the terminal supports color, falling
// back to the raw text otherwise (e.g. when --format json pipes into another tool).
func renderMarkdown(md string) string {
	if !colorEnabled() {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
