package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	dimColor     = lipgloss.Color("7")
	accentColor  = lipgloss.Color("12")
	warningColor = lipgloss.Color("11")
	dangerColor  = lipgloss.Color("9")

	// Speakers are colored in order of first appearance
	speakerColors = []lipgloss.Color{
		lipgloss.Color("10"),
		lipgloss.Color("12"),
		lipgloss.Color("13"),
		lipgloss.Color("14"),
		lipgloss.Color("11"),
		lipgloss.Color("6"),
	}

	// System/timestamp style
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// Stale or fallback turns
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)
)

// SpeakerStyle returns the style for the i-th distinct speaker
func SpeakerStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(speakerColors[i%len(speakerColors)]).
		Bold(true)
}

// FormatFooter formats a footer string with alternating keys and descriptions.
// Usage: FormatFooter("q", "Stop", "pgup/pgdn", "Scroll")
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i < len(parts); i += 2 {
		if i+1 < len(parts) {
			result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
		}
	}
	return strings.Join(result, "  ")
}

// Fit truncates plain text to width terminal cells
func Fit(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "...")
}
