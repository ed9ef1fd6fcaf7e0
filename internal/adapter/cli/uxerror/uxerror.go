// Package uxerror translates ledger service errors into user-facing
// messages with recovery hints for the CLI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Ledger Not Found"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Code    domain.ErrorCode
	Raw     string // original error text
}

// Render formats the error for terminal output.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(theme.TextError.Render(theme.SymbolError + " " + fe.Title))
	if fe.Code != "" && fe.Code != domain.CodeUnknown {
		sb.WriteString(theme.TextMuted.Render(" [" + string(fe.Code) + "]"))
	}
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	sentinel error
	title    string
	message  string
	hints    []string
}

var patterns = []errorPattern{
	{
		sentinel: domain.ErrDirectoryUnavailable,
		title:    "Documents Folder Unavailable",
		message:  "The ledgers directory could not be resolved or created.",
		hints:    []string{"Set ledgers.documents_dir in ironbank.yaml", "Check that your Documents folder exists and is writable"},
	},
	{
		sentinel: domain.ErrResourceMissing,
		title:    "Tutorial Template Missing",
		message:  "The bundled tutorial ledger was not found next to the executable.",
		hints:    []string{"Reinstall ironbank", "Point resources.dir at the folder holding resources/tutorial.ledger.json"},
	},
	{
		sentinel: domain.ErrPathOutsideSandbox,
		title:    "Path Outside Ledgers Directory",
		message:  "Only files inside the ledgers directory can be read or deleted.",
		hints:    []string{"Run 'ironbank dir' to see the ledgers directory", "Pass a path returned by 'ironbank list'"},
	},
	{
		sentinel: domain.ErrNotFound,
		title:    "Ledger Not Found",
		message:  "No file exists at that path.",
		hints:    []string{"Run 'ironbank list' to see available ledgers"},
	},
	{
		sentinel: domain.ErrInvalidInput,
		title:    "Invalid Input",
		hints:    []string{"Filenames must be plain names without directory separators"},
	},
	{
		sentinel: domain.ErrConfigLoad,
		title:    "Configuration Error",
		hints:    []string{"Run 'ironbank doctor' to check your setup", "Check file permissions on ironbank.yaml (0600 recommended)"},
	},
	{
		sentinel: domain.ErrIO,
		title:    "File System Error",
		message:  "Reading or writing a ledger file failed.",
		hints:    []string{"Check disk space and permissions on the ledgers directory"},
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	code := domain.ErrorCodeOf(err)
	for _, p := range patterns {
		if errors.Is(err, p.sentinel) {
			msg := p.message
			if msg == "" {
				msg = err.Error()
			}
			return FriendlyError{
				Title:   p.title,
				Message: msg,
				Hints:   p.hints,
				Code:    code,
				Raw:     err.Error(),
			}
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with IRONBANK_LOGGER_LEVEL=debug for more details"},
		Code:    code,
		Raw:     err.Error(),
	}
}
