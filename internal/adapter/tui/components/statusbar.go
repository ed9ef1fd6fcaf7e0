package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ironbank/internal/adapter/cli/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Preview"
}

// StatusBarModel renders a bottom status bar: key hints on the left, the
// ledgers directory and a transient notice on the right.
type StatusBarModel struct {
	Hints  []KeyHint
	Dir    string
	Notice string
	IsErr  bool
	width  int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	hints := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var right string
	switch {
	case m.Notice != "" && m.IsErr:
		right = theme.TextError.Render(theme.SymbolError + " " + m.Notice)
	case m.Notice != "":
		right = theme.TextSuccess.Render(theme.SymbolSuccess + " " + m.Notice)
	case m.Dir != "":
		right = theme.TextMuted.Render(m.Dir)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
