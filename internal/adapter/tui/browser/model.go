package browser

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ironbank/internal/adapter/cli/uxerror"
	"ironbank/internal/adapter/tui/components"
	"ironbank/internal/domain"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Ledgers is the ledger service surface the browser drives.
type Ledgers interface {
	ResolveDirectory(ctx context.Context) (string, error)
	List(ctx context.Context) ([]domain.LedgerSummary, error)
	Read(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	ResetTutorial(ctx context.Context) (string, error)
	OpenDirectory(ctx context.Context) error
}

// Tab identifies which tab is active.
type Tab int

const (
	TabLedgers Tab = iota
	TabEvents
	TabConfig
)

// Deps are the browser's dependencies.
type Deps struct {
	Ledgers Ledgers
	Bus     domain.EventBus // can be nil
	Config  string          // effective config as YAML
	Now     func() time.Time
}

// Model is the root Bubble Tea model of the ledger browser.
type Model struct {
	ctx  context.Context
	deps Deps

	activeTab Tab
	tabBar    components.TabBarModel
	statusBar components.StatusBarModel
	modal     components.ModalModel

	ledgers ledgersModel
	events  eventsModel
	config  configModel

	// pendingDelete holds the path awaiting y/n confirmation.
	pendingDelete string

	width  int
	height int

	programSend func(tea.Msg)
	unsubscribe func()
}

// New creates the browser model.
func New(ctx context.Context, deps Deps) *Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	m := &Model{
		ctx:  ctx,
		deps: deps,
		tabBar: components.NewTabBar([]components.Tab{
			{ID: "ledgers", Label: "Ledgers"},
			{ID: "events", Label: "Events"},
			{ID: "config", Label: "Config"},
		}),
		statusBar: components.NewStatusBar(),
		modal:     components.NewModal(),
		ledgers:   newLedgersModel(deps.Now),
		events:    newEventsModel(),
	}
	m.config.SetContent(deps.Config)
	return m
}

// SetProgramSender sets the function used to inject bus events.
// Must be called before the program runs.
func (m *Model) SetProgramSender(send func(tea.Msg)) {
	m.programSend = send
}

// Init subscribes to the bus and loads the first listing.
func (m *Model) Init() tea.Cmd {
	if m.deps.Bus != nil && m.programSend != nil {
		m.unsubscribe = m.deps.Bus.SubscribeAll(func(_ context.Context, event domain.Event) {
			m.programSend(EventBusMsg{Event: event})
		})
	}
	return tea.Batch(m.ledgers.spinner.Tick, loadLedgersCmd(m.ctx, m.deps.Ledgers))
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.ledgers, cmd = m.ledgers.Update(msg)
		return m, cmd

	case ledgersLoadedMsg:
		if msg.Err != nil {
			m.ledgers.SetError(uxerror.Humanize(msg.Err).Title)
			return m, nil
		}
		m.statusBar.Dir = msg.Dir
		m.ledgers.SetItems(msg.Items)
		return m, nil

	case previewLoadedMsg:
		if msg.Err != nil {
			m.notify("", msg.Err)
			return m, nil
		}
		m.modal.Open(msg.Title, renderPreview(msg.Content, m.width-6))
		return m, nil

	case actionDoneMsg:
		m.notify(msg.Notice, msg.Err)
		if msg.Reload {
			return m, loadLedgersCmd(m.ctx, m.deps.Ledgers)
		}
		return m, nil

	case EventBusMsg:
		m.events.AddEvent(msg.Event)
		if m.activeTab != TabEvents {
			m.tabBar.Bump("events")
		}
		// Changes made elsewhere (gateway clients, other processes via the
		// same bus) refresh the listing.
		return m, loadLedgersCmd(m.ctx, m.deps.Ledgers)

	case tea.KeyMsg:
		if m.modal.Visible {
			var cmd tea.Cmd
			m.modal, cmd = m.modal.Update(msg)
			return m, cmd
		}
		if m.pendingDelete != "" {
			return m, m.confirmDelete(msg.String() == "y")
		}
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabLedgers:
		m.ledgers, cmd = m.ledgers.Update(msg)
	case TabEvents:
		m.events, cmd = m.events.Update(msg)
	case TabConfig:
		m.config, cmd = m.config.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quit()
		return m, tea.Quit, true
	case "tab":
		m.tabBar.Next()
		m.activeTab = Tab(m.tabBar.Active)
		return m, nil, true
	case "shift+tab":
		m.tabBar.Prev()
		m.activeTab = Tab(m.tabBar.Active)
		return m, nil, true
	case "1", "2", "3":
		m.setTab(Tab(msg.String()[0] - '1'))
		return m, nil, true
	case "o":
		return m, openDirectoryCmd(m.ctx, m.deps.Ledgers), true
	case "t":
		return m, resetTutorialCmd(m.ctx, m.deps.Ledgers), true
	case "r":
		return m, loadLedgersCmd(m.ctx, m.deps.Ledgers), true
	}

	if m.activeTab != TabLedgers {
		return m, nil, false
	}
	switch msg.String() {
	case "enter":
		if it, ok := m.ledgers.Selected(); ok {
			return m, previewCmd(m.ctx, m.deps.Ledgers, it.Name, it.Path), true
		}
		return m, nil, true
	case "d", "delete":
		if it, ok := m.ledgers.Selected(); ok {
			m.pendingDelete = it.Path
			m.statusBar.Notice = "delete " + it.Filename + "? (y/n)"
			m.statusBar.IsErr = true
		}
		return m, nil, true
	}
	return m, nil, false
}

func (m *Model) confirmDelete(yes bool) tea.Cmd {
	path := m.pendingDelete
	m.pendingDelete = ""
	m.statusBar.Notice = ""
	if !yes {
		return nil
	}
	return deleteCmd(m.ctx, m.deps.Ledgers, path)
}

func (m *Model) notify(notice string, err error) {
	if err != nil {
		fe := uxerror.Humanize(err)
		m.statusBar.Notice = fe.Title + ": " + fe.Message
		m.statusBar.IsErr = true
		return
	}
	m.statusBar.Notice = notice
	m.statusBar.IsErr = false
}

func (m *Model) quit() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// View renders the browser.
func (m *Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}
	if m.modal.Visible {
		return m.modal.View()
	}

	var content string
	switch m.activeTab {
	case TabLedgers:
		content = m.ledgers.View()
	case TabEvents:
		content = m.events.View()
	case TabConfig:
		content = m.config.View()
	}

	m.statusBar.Hints = m.hints()
	m.statusBar.SetWidth(m.width)

	body := lipgloss.NewStyle().Height(m.contentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, m.tabBar.View(), body, m.statusBar.View())
}

func (m *Model) hints() []components.KeyHint {
	if m.activeTab == TabLedgers {
		return []components.KeyHint{
			{Key: "Enter", Desc: "Preview"},
			{Key: "d", Desc: "Delete"},
			{Key: "t", Desc: "Tutorial"},
			{Key: "o", Desc: "Open"},
			{Key: "q", Desc: "Quit"},
		}
	}
	return []components.KeyHint{
		{Key: "Tab", Desc: "Switch"},
		{Key: "j/k", Desc: "Scroll"},
		{Key: "q", Desc: "Quit"},
	}
}

func (m *Model) contentHeight() int {
	return max(m.height-2, 5)
}

func (m *Model) layout() {
	h := m.contentHeight()
	m.tabBar.SetWidth(m.width)
	m.modal.SetSize(m.width, m.height)
	m.ledgers.SetSize(m.width, h)
	m.events.SetSize(m.width, h)
	m.config.SetSize(m.width, h-1)
}

func (m *Model) setTab(tab Tab) {
	m.activeTab = tab
	m.tabBar.SetActive(int(tab))
}

// Run starts the browser on the terminal and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.SetProgramSender(p.Send)
	defer m.quit()
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
