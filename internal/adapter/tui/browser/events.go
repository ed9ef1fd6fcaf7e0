package browser

import (
	tea "github.com/charmbracelet/bubbletea"

	"ironbank/internal/adapter/tui/components"
	"ironbank/internal/domain"
)

// eventsModel wraps the event stream with a type filter.
type eventsModel struct {
	stream    components.EventStreamModel
	filterBar components.FilterBarModel
}

func newEventsModel() eventsModel {
	return eventsModel{
		stream: components.NewEventStream(),
		filterBar: components.NewFilterBar([]components.FilterOption{
			{ID: string(domain.EventLedgerSaved), Label: "Saved", Shortcut: "s"},
			{ID: string(domain.EventLedgerDeleted), Label: "Deleted", Shortcut: "x"},
			{ID: "ledger.tutorial.", Label: "Tutorial", Shortcut: "u"},
		}),
	}
}

// SetSize reserves one line for the filter bar.
func (m *eventsModel) SetSize(w, h int) {
	m.stream.SetSize(w, h-1)
}

func (m *eventsModel) AddEvent(event domain.Event) {
	m.stream.AddEvent(event)
	m.filterBar.SetCounts(m.stream.EventCount(), m.stream.FilteredCount())
}

func (m eventsModel) Update(msg tea.Msg) (eventsModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyRunes {
		if m.filterBar.HandleShortcut(string(keyMsg.Runes)) {
			m.stream.SetFilter(m.filterBar.Active)
			m.filterBar.SetCounts(m.stream.EventCount(), m.stream.FilteredCount())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.stream, cmd = m.stream.Update(msg)
	return m, cmd
}

func (m eventsModel) View() string {
	return m.filterBar.View() + "\n" + m.stream.View()
}
