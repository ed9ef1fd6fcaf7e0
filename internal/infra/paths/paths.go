// Package paths resolves the platform directories the ledger backend depends on.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"

	"ironbank/internal/domain"
)

// DocumentsLocator resolves the user's documents folder.
// An explicit override (from config) wins over the platform convention.
type DocumentsLocator struct {
	override string
	platform func() string
}

// NewDocumentsLocator creates a locator. An empty override means
// "ask the platform" (XDG user dirs on Linux, ~/Documents on macOS,
// the Documents known folder on Windows).
func NewDocumentsLocator(override string) *DocumentsLocator {
	return &DocumentsLocator{
		override: strings.TrimSpace(override),
		platform: func() string { return xdg.UserDirs.Documents },
	}
}

// DocumentsDir returns the absolute documents folder or ErrDirectoryUnavailable.
func (l *DocumentsLocator) DocumentsDir() (string, error) {
	dir := l.override
	if dir == "" {
		dir = l.platform()
	}
	if dir == "" {
		return "", domain.NewDomainError("Paths.DocumentsDir", domain.ErrDirectoryUnavailable,
			"could not find Documents directory")
	}

	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", domain.NewDomainError("Paths.DocumentsDir", domain.ErrDirectoryUnavailable, err.Error())
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", domain.NewDomainError("Paths.DocumentsDir", domain.ErrDirectoryUnavailable, err.Error())
	}
	return abs, nil
}

// LedgersDir returns <documents>/Ironbank/ledgers without touching the disk.
func LedgersDir(documents string) string {
	return filepath.Join(documents, domain.AppDirName, domain.LedgersDirName)
}

// ExecutableDir returns the directory holding the running binary, which is
// where packaged resources are installed. Falls back to "." when unknown.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// WorkingDir returns the current working directory, or "." when it cannot be read.
func WorkingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
