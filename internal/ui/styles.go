package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for the CLI output
var (
	// Primary colors
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers
	SuccessColor = lipgloss.Color("#43BF6D") // Green - success, checkmarks
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, X marks
	WarningColor = lipgloss.Color("#FFA500") // Orange - warnings
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60 // Minimum supported terminal width
	MaxBarWidth      = 50 // Progress bar width cap
)

// Shared styles for the CLI output
var (
	// HeaderTitleStyle is for the operation title (e.g., "SPREADTRUM FLASH")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderParamKeyStyle is for parameter keys (e.g., "Profile:")
	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamValueStyle is for parameter values (e.g., "sc9863a")
	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// LogDebugStyle is for debug-level status lines
	LogDebugStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// LogInfoStyle is for info-level status lines
	LogInfoStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// LogWarnStyle is for warnings
	LogWarnStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// LogErrorStyle is for error lines
	LogErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// SuccessTitleStyle is for the success result title
	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	// ErrorTitleStyle is for the error result title
	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// ErrorDetailStyle is for technical error detail
	ErrorDetailStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	// ResultKeyStyle is for result detail keys
	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	// ResultValueStyle is for result detail values
	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "!"
)

// GetTerminalWidth returns the current terminal width, clamped to the
// supported minimum. Falls back to 80 when stdout is not a terminal.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}
