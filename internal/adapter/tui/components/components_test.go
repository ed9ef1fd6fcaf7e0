package components

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ironbank/internal/domain"
)

func TestTabBarNavigation(t *testing.T) {
	tb := NewTabBar([]Tab{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}})

	tb.Prev()
	assert.Equal(t, 2, tb.Active)
	tb.Next()
	assert.Equal(t, 0, tb.Active)

	tb.Bump("b")
	tb.Bump("a") // active tab never gets a badge
	assert.Equal(t, 0, tb.Tabs[0].Badge)
	assert.Equal(t, 1, tb.Tabs[1].Badge)

	tb.SetActive(1)
	assert.Equal(t, 0, tb.Tabs[1].Badge)
	tb.SetActive(9)
	assert.Equal(t, 1, tb.Active)
}

func TestTabBarCollapses(t *testing.T) {
	tb := NewTabBar([]Tab{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}})
	tb.SetWidth(30)
	view := tb.View()
	assert.Contains(t, view, "[1/2]")
	assert.NotContains(t, view, "Beta")
}

func TestFilterBarShortcuts(t *testing.T) {
	fb := NewFilterBar([]FilterOption{{ID: "ledger.saved", Label: "Saved", Shortcut: "s"}})

	assert.True(t, fb.HandleShortcut("s"))
	assert.Equal(t, "ledger.saved", fb.Active)
	assert.True(t, fb.HandleShortcut("s"))
	assert.Empty(t, fb.Active)

	fb.Toggle("ledger.saved")
	assert.True(t, fb.HandleShortcut("a"))
	assert.Empty(t, fb.Active)

	assert.False(t, fb.HandleShortcut("z"))
}

func event(typ domain.EventType, filename string) domain.Event {
	payload, _ := json.Marshal(domain.LedgerEventPayload{Path: "/l/" + filename, Filename: filename})
	return domain.Event{Type: typ, Timestamp: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), Payload: payload}
}

func TestEventStreamFilter(t *testing.T) {
	es := NewEventStream()
	es.SetSize(80, 10)
	es.AddEvent(event(domain.EventLedgerSaved, "a.json"))
	es.AddEvent(event(domain.EventTutorialReset, "tutorial.ledger.json"))
	es.AddEvent(event(domain.EventTutorialSeeded, "tutorial.ledger.json"))

	assert.Equal(t, 3, es.EventCount())
	es.SetFilter("ledger.tutorial.")
	assert.Equal(t, 2, es.FilteredCount())
	assert.NotContains(t, es.View(), "a.json")
}

func TestEventStreamCapsBuffer(t *testing.T) {
	es := NewEventStream()
	for i := 0; i < maxEventEntries+10; i++ {
		es.AddEvent(event(domain.EventLedgerSaved, "a.json"))
	}
	assert.Equal(t, maxEventEntries, es.EventCount())
}

func TestFormatEvent(t *testing.T) {
	line := FormatEvent(event(domain.EventLedgerDeleted, "old.json"))
	assert.Contains(t, line, "09:30:00")
	assert.Contains(t, line, "ledger.deleted")
	assert.Contains(t, line, "old.json")

	line = FormatEvent(domain.Event{Type: domain.EventLedgerSaved, Payload: json.RawMessage(`{"path":"/l/x.json"}`)})
	assert.Contains(t, line, "/l/x.json")
}

func TestStatusBarNotice(t *testing.T) {
	sb := NewStatusBar()
	sb.SetWidth(80)
	sb.Hints = []KeyHint{{Key: "q", Desc: "Quit"}}
	sb.Dir = "/docs/Ironbank/ledgers"
	assert.Contains(t, sb.View(), "/docs/Ironbank/ledgers")

	sb.Notice = "saved"
	view := sb.View()
	assert.Contains(t, view, "saved")
	assert.NotContains(t, view, "/docs/Ironbank/ledgers")
}
