package browser

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
)

func loadLedgersCmd(ctx context.Context, svc Ledgers) tea.Cmd {
	return func() tea.Msg {
		dir, err := svc.ResolveDirectory(ctx)
		if err != nil {
			return ledgersLoadedMsg{Err: err}
		}
		items, err := svc.List(ctx)
		return ledgersLoadedMsg{Dir: dir, Items: items, Err: err}
	}
}

func previewCmd(ctx context.Context, svc Ledgers, title, path string) tea.Cmd {
	return func() tea.Msg {
		content, err := svc.Read(ctx, path)
		return previewLoadedMsg{Title: title, Content: content, Err: err}
	}
}

func deleteCmd(ctx context.Context, svc Ledgers, path string) tea.Cmd {
	return func() tea.Msg {
		if err := svc.Delete(ctx, path); err != nil {
			return actionDoneMsg{Err: err}
		}
		return actionDoneMsg{Notice: "deleted " + filepath.Base(path), Reload: true}
	}
}

func resetTutorialCmd(ctx context.Context, svc Ledgers) tea.Cmd {
	return func() tea.Msg {
		path, err := svc.ResetTutorial(ctx)
		if err != nil {
			return actionDoneMsg{Err: err}
		}
		return actionDoneMsg{Notice: "tutorial restored to " + filepath.Base(path), Reload: true}
	}
}

func openDirectoryCmd(ctx context.Context, svc Ledgers) tea.Cmd {
	return func() tea.Msg {
		if err := svc.OpenDirectory(ctx); err != nil {
			return actionDoneMsg{Err: err}
		}
		return actionDoneMsg{Notice: "opened in file manager"}
	}
}
