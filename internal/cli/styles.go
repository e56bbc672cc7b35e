package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2E8B57") // Loop green
	accentColor  = lipgloss.Color("#FFA500") // Orange
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
	errorColor   = lipgloss.Color("#C00000") // Red
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	NoticeStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(accentColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Sonido Looper"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintSuccess prints a completion message to w
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintNotice prints a dimmed status line to stderr; a trailing carriage
// return lets repeated notices overwrite each other.
func PrintNotice(message string, overwrite bool) {
	end := "\n"
	if overwrite {
		end = "\r"
	}
	fmt.Fprint(os.Stderr, NoticeStyle.Render(message)+end)
}
