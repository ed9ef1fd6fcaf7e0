package components

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/domain"
)

const maxEventEntries = 500

// EventStreamModel displays a scrollable stream of ledger events. It follows
// the tail unless the user has scrolled up.
type EventStreamModel struct {
	Viewport viewport.Model
	events   []domain.Event
	filter   string // event type prefix; empty = all
	ready    bool
	atBottom bool
}

// NewEventStream creates an event stream viewer.
func NewEventStream() EventStreamModel {
	return EventStreamModel{atBottom: true}
}

// SetSize sets the viewport dimensions.
func (m *EventStreamModel) SetSize(w, h int) {
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
}

// SetFilter sets the event type prefix filter.
func (m *EventStreamModel) SetFilter(prefix string) {
	m.filter = prefix
	m.refreshContent()
}

// AddEvent appends an event, dropping the oldest past maxEventEntries.
func (m *EventStreamModel) AddEvent(event domain.Event) {
	m.events = append(m.events, event)
	if len(m.events) > maxEventEntries {
		m.events = m.events[len(m.events)-maxEventEntries:]
	}
	m.refreshContent()
	if m.atBottom && m.ready {
		m.Viewport.GotoBottom()
	}
}

// Update handles viewport scrolling.
func (m EventStreamModel) Update(msg tea.Msg) (EventStreamModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// EventCount returns the total number of buffered events.
func (m EventStreamModel) EventCount() int {
	return len(m.events)
}

// FilteredCount returns the number of events matching the current filter.
func (m EventStreamModel) FilteredCount() int {
	n := 0
	for _, evt := range m.events {
		if m.matches(evt) {
			n++
		}
	}
	return n
}

// View renders the event stream.
func (m EventStreamModel) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m EventStreamModel) matches(evt domain.Event) bool {
	return m.filter == "" || strings.HasPrefix(string(evt.Type), m.filter)
}

func (m *EventStreamModel) refreshContent() {
	if !m.ready {
		return
	}
	if len(m.events) == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  Waiting for ledger changes..."))
		return
	}

	var sb strings.Builder
	for _, evt := range m.events {
		if !m.matches(evt) {
			continue
		}
		sb.WriteString(FormatEvent(evt))
		sb.WriteByte('\n')
	}
	m.Viewport.SetContent(sb.String())
}

// FormatEvent renders one event line: time, colored type and affected file.
func FormatEvent(evt domain.Event) string {
	padded := fmt.Sprintf("%-24s", string(evt.Type))
	var typeStyled string
	switch {
	case evt.Type == domain.EventLedgerDeleted:
		typeStyled = theme.TextError.Render(padded)
	case evt.Type == domain.EventLedgerSaved:
		typeStyled = theme.TextSuccess.Render(padded)
	case strings.HasPrefix(string(evt.Type), "ledger.tutorial."):
		typeStyled = theme.TextAccent.Render(padded)
	default:
		typeStyled = theme.TextMuted.Render(padded)
	}

	target := ""
	var p domain.LedgerEventPayload
	if len(evt.Payload) > 0 && json.Unmarshal(evt.Payload, &p) == nil {
		target = p.Filename
		if target == "" {
			target = p.Path
		}
	}

	return fmt.Sprintf("  %s  %s%s",
		theme.Timestamp.Render(evt.Timestamp.Format("15:04:05")),
		typeStyled,
		theme.TextMuted.Render(target),
	)
}
