// Package theme holds the terminal styles used by the ironbank CLI.
// Colors are adaptive so output reads on light and dark terminals.
//
// NO_COLOR (https://no-color.org/) is respected by lipgloss's color profile
// detection; when set, all color output is suppressed.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Adaptive Color Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
)

// --- Text styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// --- Ledger table ---

var (
	TableBorder = lipgloss.NewStyle().Foreground(ColorBorder)

	TableHeader = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().Padding(0, 1)

	TableCellDim = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 1)
)

// Section is the heading style for grouped output such as doctor checks.
var Section = lipgloss.NewStyle().
	Foreground(ColorInfo).
	Bold(true).
	Padding(0, 0, 1, 0)

// --- Browser (interactive TUI) ---

var (
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorTabBg        = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}
	ColorTabFg        = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9e9e9e"}
	ColorTabActBg     = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorTabActFg     = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1e1e1e"}
	ColorBarBg        = lipgloss.AdaptiveColor{Light: "#eeeeee", Dark: "#262626"}
)

var (
	TabNormal = lipgloss.NewStyle().
			Foreground(ColorTabFg).
			Background(ColorTabBg).
			Padding(0, 2)

	TabActive = lipgloss.NewStyle().
			Foreground(ColorTabActFg).
			Background(ColorTabActBg).
			Bold(true).
			Padding(0, 2)

	StatusBar = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Background(ColorBarBg).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	Timestamp = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Faint(true)
)

// MinTabWidth is the minimum terminal width that shows tab labels (else collapse).
const MinTabWidth = 60

// MaxContentWidth caps the width of rendered ledger previews.
const MaxContentWidth = 100
