package browser

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ironbank/internal/adapter/cli"
	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/domain"
)

// ledgersModel is the directory listing tab.
type ledgersModel struct {
	table   table.Model
	spinner spinner.Model
	items   []domain.LedgerSummary
	loading bool
	err     string
	now     func() time.Time
	width   int
	height  int
}

func newLedgersModel(now func() time.Time) ledgersModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.TextInfo

	t := table.New(table.WithFocused(true))
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Foreground(theme.ColorAccent)
	st.Selected = st.Selected.
		Foreground(theme.ColorTabActFg).
		Background(theme.ColorTabActBg)
	t.SetStyles(st)

	return ledgersModel{table: t, spinner: s, loading: true, now: now}
}

func (m *ledgersModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.table.SetWidth(w)
	m.table.SetHeight(max(h-1, 3))
	m.rebuild()
}

// SetItems replaces the listing and keeps the cursor in range.
func (m *ledgersModel) SetItems(items []domain.LedgerSummary) {
	m.items = items
	m.loading = false
	m.err = ""
	m.rebuild()
	if c := m.table.Cursor(); c >= len(items) {
		m.table.SetCursor(max(len(items)-1, 0))
	}
}

func (m *ledgersModel) SetError(msg string) {
	m.loading = false
	m.err = msg
}

// Selected returns the highlighted ledger, if any.
func (m ledgersModel) Selected() (domain.LedgerSummary, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.items) {
		return domain.LedgerSummary{}, false
	}
	return m.items[c], true
}

func (m *ledgersModel) rebuild() {
	nameW := max(m.width-24-12-10-8, 12)
	m.table.SetColumns([]table.Column{
		{Title: "Name", Width: nameW / 2},
		{Title: "File", Width: nameW - nameW/2 + 12},
		{Title: "Modified", Width: 14},
		{Title: "Size", Width: 10},
	})

	now := time.Now()
	if m.now != nil {
		now = m.now()
	}
	rows := make([]table.Row, 0, len(m.items))
	for _, it := range m.items {
		rows = append(rows, table.Row(cli.LedgerRow(it, now)))
	}
	m.table.SetRows(rows)
}

func (m ledgersModel) Update(msg tea.Msg) (ledgersModel, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok {
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ledgersModel) View() string {
	switch {
	case m.loading:
		return "  " + m.spinner.View() + " Loading ledgers..."
	case m.err != "":
		return "  " + theme.TextError.Render(theme.SymbolError+" "+m.err)
	case len(m.items) == 0:
		return theme.TextMuted.Render("  No ledgers yet. Press t to restore the tutorial.")
	}
	return m.table.View()
}
