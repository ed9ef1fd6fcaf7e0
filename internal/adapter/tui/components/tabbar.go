// Package components provides reusable Bubble Tea sub-models for the ledger browser.
package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ironbank/internal/adapter/cli/theme"
)

// Tab represents a single tab entry.
type Tab struct {
	ID    string
	Label string
	Badge int // unseen item count; 0 = hidden
}

// TabBarModel is a horizontal tab bar.
type TabBarModel struct {
	Tabs      []Tab
	Active    int
	width     int
	collapsed bool // true when width < MinTabWidth
}

// NewTabBar creates a tab bar with the given tabs. The first tab is active.
func NewTabBar(tabs []Tab) TabBarModel {
	return TabBarModel{Tabs: tabs}
}

// SetWidth updates the available width and collapses labels on narrow terminals.
func (m *TabBarModel) SetWidth(w int) {
	m.width = w
	m.collapsed = w < theme.MinTabWidth
}

// Next advances to the next tab, wrapping around.
func (m *TabBarModel) Next() {
	if len(m.Tabs) == 0 {
		return
	}
	m.SetActive((m.Active + 1) % len(m.Tabs))
}

// Prev moves to the previous tab, wrapping around.
func (m *TabBarModel) Prev() {
	if len(m.Tabs) == 0 {
		return
	}
	m.SetActive((m.Active - 1 + len(m.Tabs)) % len(m.Tabs))
}

// SetActive selects a tab by index and clears its badge.
func (m *TabBarModel) SetActive(i int) {
	if i >= 0 && i < len(m.Tabs) {
		m.Active = i
		m.Tabs[i].Badge = 0
	}
}

// Bump increments the badge of a background tab.
func (m *TabBarModel) Bump(id string) {
	for i := range m.Tabs {
		if m.Tabs[i].ID == id && i != m.Active {
			m.Tabs[i].Badge++
		}
	}
}

// View renders the tab bar.
func (m TabBarModel) View() string {
	if len(m.Tabs) == 0 {
		return ""
	}

	if m.collapsed {
		t := m.Tabs[m.Active]
		counter := theme.Dim.Render("[" + strconv.Itoa(m.Active+1) + "/" + strconv.Itoa(len(m.Tabs)) + "]")
		return lipgloss.JoinHorizontal(lipgloss.Center, theme.TabActive.Render(t.Label), " ", counter)
	}

	parts := make([]string, 0, len(m.Tabs))
	for i, t := range m.Tabs {
		label := t.Label
		if t.Badge > 0 {
			label += " " + theme.TextWarning.Render(strconv.Itoa(t.Badge))
		}
		if i == m.Active {
			parts = append(parts, theme.TabActive.Render(label))
		} else {
			parts = append(parts, theme.TabNormal.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Center, parts...)

	if m.width > 0 {
		if remaining := m.width - lipgloss.Width(bar); remaining > 0 {
			bar += theme.TabNormal.UnsetPadding().Render(strings.Repeat(" ", remaining))
		}
	}
	return bar
}
