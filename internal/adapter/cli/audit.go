package cli

import (
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/domain"
)

// AuditTable renders journal entries in the order given.
func AuditTable(events []domain.AuditEvent, now time.Time) string {
	if len(events) == 0 {
		return theme.TextMuted.Render("No audit entries.")
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			string(e.Type),
			e.Actor,
			auditTarget(e),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.TableBorder).
		Headers("TIME", "AGE", "TYPE", "ACTOR", "TARGET").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.TableHeader
			case col == 2 && row >= 0 && row < len(events) && events[row].Type == domain.AuditAccessDenied:
				return theme.TableCell.Foreground(theme.ColorError)
			case col <= 1:
				return theme.TableCellDim
			default:
				return theme.TableCell
			}
		})
	return t.String()
}

// auditTarget prefers the resource, then the detail map in key order.
func auditTarget(e domain.AuditEvent) string {
	if e.Resource != "" {
		return e.Resource
	}
	keys := make([]string, 0, len(e.Detail))
	for k := range e.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Detail[k])
	}
	return strings.Join(parts, " ")
}
