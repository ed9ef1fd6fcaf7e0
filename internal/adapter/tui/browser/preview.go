package browser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/glamour"

	"ironbank/internal/adapter/cli/theme"
)

// renderPreview pretty-prints ledger JSON and renders it as a highlighted
// code block. Content that is not valid JSON is shown as-is.
func renderPreview(content string, width int) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
		return content
	}

	if width > theme.MaxContentWidth {
		width = theme.MaxContentWidth
	}
	if width < 40 {
		width = 40
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return buf.String()
	}
	out, err := r.Render("```json\n" + buf.String() + "\n```\n")
	if err != nil {
		return buf.String()
	}
	return strings.TrimRight(out, "\n")
}
