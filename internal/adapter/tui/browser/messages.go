// Package browser implements the interactive ledger browser: a Bubble Tea
// program that lists ledgers, previews them, applies deletes and tutorial
// resets, and tails ledger events.
package browser

import "ironbank/internal/domain"

// EventBusMsg wraps an event delivered by the bus subscription.
type EventBusMsg struct {
	Event domain.Event
}

// ledgersLoadedMsg carries a directory listing.
type ledgersLoadedMsg struct {
	Dir   string
	Items []domain.LedgerSummary
	Err   error
}

// previewLoadedMsg carries the content of a ledger opened for preview.
type previewLoadedMsg struct {
	Title   string
	Content string
	Err     error
}

// actionDoneMsg reports the outcome of a mutating action.
type actionDoneMsg struct {
	Notice string
	Err    error
	Reload bool
}
