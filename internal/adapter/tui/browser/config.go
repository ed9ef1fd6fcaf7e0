package browser

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"ironbank/internal/adapter/cli/theme"
)

// configModel shows the effective configuration read-only with secrets masked.
type configModel struct {
	viewport viewport.Model
	content  string
	ready    bool
}

func (m *configModel) SetSize(w, h int) {
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.viewport.SetContent(m.content)
}

func (m *configModel) SetContent(yaml string) {
	m.content = MaskSecrets(yaml)
	if m.ready {
		m.viewport.SetContent(m.content)
	}
}

func (m configModel) Update(msg tea.Msg) (configModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m configModel) View() string {
	if !m.ready {
		return ""
	}
	return theme.TextMuted.Render("  Effective configuration (secrets masked)") + "\n" + m.viewport.View()
}

var secretKeys = []string{"token", "secret", "password", "passphrase", "config_key"}

// MaskSecrets replaces the values of secret-looking YAML keys with asterisks.
// List items ("- token: x") are matched too.
func MaskSecrets(yaml string) string {
	lines := strings.Split(yaml, "\n")
	for i, line := range lines {
		trimmed := strings.TrimPrefix(strings.TrimSpace(line), "- ")
		for _, key := range secretKeys {
			if !strings.HasPrefix(trimmed, key+":") {
				continue
			}
			idx := strings.Index(line, key+":") + len(key) + 1
			val := strings.TrimSpace(line[idx:])
			if val != "" && val != `""` && val != "''" {
				lines[i] = line[:idx] + " ****"
			}
		}
	}
	return strings.Join(lines, "\n")
}
