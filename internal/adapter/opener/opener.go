// Package opener launches the host operating system's file browser.
package opener

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"ironbank/internal/domain"
)

// CommandFor returns the file-browser launcher for a GOOS value.
func CommandFor(goos string) []string {
	switch goos {
	case "windows":
		return []string{"explorer"}
	case "darwin":
		return []string{"open"}
	default:
		return []string{"xdg-open"}
	}
}

// SystemFileManager spawns the platform launcher and never waits for it to finish.
type SystemFileManager struct {
	argv   []string
	start  func(cmd *exec.Cmd) error
	logger *slog.Logger
}

// New creates a file manager for the running platform. A non-empty override
// (e.g. "nautilus --new-window") replaces the platform default.
func New(override string, logger *slog.Logger) *SystemFileManager {
	argv := strings.Fields(override)
	if len(argv) == 0 {
		argv = CommandFor(runtime.GOOS)
	}
	return &SystemFileManager{argv: argv, start: startDetached, logger: logger}
}

func (m *SystemFileManager) Name() string { return m.argv[0] }

// Open launches the file browser on dir. The request context is not bound to
// the child process: the browser window must outlive the call.
func (m *SystemFileManager) Open(_ context.Context, dir string) error {
	args := append(append([]string{}, m.argv[1:]...), dir)
	cmd := exec.Command(m.argv[0], args...)
	if err := m.start(cmd); err != nil {
		return domain.NewDomainError("FileManager.Open", domain.ErrIO,
			fmt.Sprintf("failed to open directory: %v", err))
	}
	m.logger.Debug("file manager launched", "command", m.argv[0], "dir", dir)
	return nil
}

// startDetached starts cmd and reaps it in the background.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
