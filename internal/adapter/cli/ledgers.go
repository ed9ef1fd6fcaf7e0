// Package cli renders ledger service results for the terminal.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/domain"
)

// LedgerTable renders a directory listing. Rows keep the order they were
// given in; the ledger service already sorts newest first.
func LedgerTable(items []domain.LedgerSummary, now time.Time) string {
	if len(items) == 0 {
		return theme.TextMuted.Render("No ledgers yet.")
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, LedgerRow(it, now))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.TableBorder).
		Headers("NAME", "FILE", "MODIFIED", "SIZE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.TableHeader
			case col >= 2:
				return theme.TableCellDim
			default:
				return theme.TableCell
			}
		})
	return t.String()
}

// LedgerRow formats one summary as NAME, FILE, MODIFIED, SIZE cells.
func LedgerRow(it domain.LedgerSummary, now time.Time) []string {
	return []string{
		it.Name,
		it.Filename,
		humanize.RelTime(time.Unix(it.ModifiedAt, 0), now, "ago", "from now"),
		humanize.Bytes(uint64(max(it.SizeBytes, 0))),
	}
}

// LedgerPaths renders one absolute path per line, for scripting.
func LedgerPaths(items []domain.LedgerSummary) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(it.Path)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Success formats a one-line confirmation.
func Success(format string, args ...any) string {
	return theme.TextSuccess.Render(theme.SymbolSuccess) + " " + fmt.Sprintf(format, args...)
}
