package components

import (
	"fmt"
	"strings"

	"ironbank/internal/adapter/cli/theme"
)

// FilterOption defines a single filter choice.
type FilterOption struct {
	ID       string // event type prefix, e.g. "ledger.tutorial."
	Label    string
	Shortcut string // single key
}

// FilterBarModel renders a horizontal filter bar with keyboard shortcuts.
type FilterBarModel struct {
	Options  []FilterOption
	Active   string // active filter ID; empty = show all
	Total    int
	Filtered int
}

// NewFilterBar creates a filter bar with the given options.
func NewFilterBar(options []FilterOption) FilterBarModel {
	return FilterBarModel{Options: options}
}

// Toggle activates a filter. Calling with the same ID again clears it.
func (m *FilterBarModel) Toggle(id string) {
	if m.Active == id {
		m.Active = ""
	} else {
		m.Active = id
	}
}

// HandleShortcut applies the filter bound to key. "a" clears the filter.
// Returns true if the key was consumed.
func (m *FilterBarModel) HandleShortcut(key string) bool {
	for _, opt := range m.Options {
		if opt.Shortcut == key {
			m.Toggle(opt.ID)
			return true
		}
	}
	if key == "a" {
		m.Active = ""
		return true
	}
	return false
}

// SetCounts updates the total and filtered counts.
func (m *FilterBarModel) SetCounts(total, filtered int) {
	m.Total = total
	m.Filtered = filtered
}

// View renders the filter bar.
func (m FilterBarModel) View() string {
	style := func(active bool) func(...string) string {
		if active {
			return theme.TextInfo.Render
		}
		return theme.TextMuted.Render
	}

	parts := []string{style(m.Active == "")("[a] All")}
	for _, opt := range m.Options {
		parts = append(parts, style(m.Active == opt.ID)(fmt.Sprintf("[%s] %s", opt.Shortcut, opt.Label)))
	}

	bar := "  Filter: " + strings.Join(parts, "  ")
	if m.Total > 0 {
		bar += theme.Dim.Render(fmt.Sprintf("  Showing %d/%d", m.Filtered, m.Total))
	}
	return bar
}
