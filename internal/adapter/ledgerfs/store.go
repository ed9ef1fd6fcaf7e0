// Package ledgerfs stores ledger documents as JSON files in the user's
// ledgers directory.
package ledgerfs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"ironbank/internal/domain"
	"ironbank/internal/infra/paths"
	"ironbank/internal/security"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Store performs ledger file I/O. It keeps no ledger state: every call
// re-resolves the directory and reads the disk fresh.
type Store struct {
	fs      afero.Fs
	docs    domain.DocumentsLocator
	confine bool
	logger  *slog.Logger
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithFs swaps the filesystem backend. Path confinement resolves symlinks on
// the host, so confined stores must be backed by the OS filesystem.
func WithFs(fs afero.Fs) StoreOption {
	return func(s *Store) { s.fs = fs }
}

// WithConfinement toggles rejection of paths outside the ledgers directory.
func WithConfinement(on bool) StoreOption {
	return func(s *Store) { s.confine = on }
}

// NewStore creates a store over the local filesystem with confinement on.
func NewStore(docs domain.DocumentsLocator, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		fs:      afero.NewOsFs(),
		docs:    docs,
		confine: true,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir resolves the ledgers directory, creating it when missing.
func (s *Store) Dir() (string, error) {
	docs, err := s.docs.DocumentsDir()
	if err != nil {
		return "", err
	}
	dir := paths.LedgersDir(docs)
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return "", domain.NewDomainError("Store.Dir", domain.ErrIO,
			fmt.Sprintf("failed to create ledgers directory: %v", err))
	}
	return dir, nil
}

// List returns every ledger directly inside the ledgers directory, newest first.
func (s *Store) List() ([]domain.LedgerSummary, error) {
	dir, err := s.Dir()
	if err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, domain.NewDomainError("Store.List", domain.ErrIO,
			fmt.Sprintf("failed to read ledgers directory: %v", err))
	}

	ledgers := make([]domain.LedgerSummary, 0, len(infos))
	for _, entry := range infos {
		filename := entry.Name()
		if !isLedgerFile(filename) {
			continue
		}
		path := filepath.Join(dir, filename)

		// Stat follows symlinks; anything that is not a regular file is skipped.
		info, err := s.fs.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		ledgers = append(ledgers, domain.LedgerSummary{
			Name:       s.displayName(path, filename),
			Filename:   filename,
			Path:       path,
			ModifiedAt: unixSeconds(info),
			SizeBytes:  info.Size(),
		})
	}

	sort.SliceStable(ledgers, func(i, j int) bool {
		return ledgers[i].ModifiedAt > ledgers[j].ModifiedAt
	})
	return ledgers, nil
}

// Read returns the full text of the ledger at path.
func (s *Store) Read(path string) (string, error) {
	resolved, err := s.checkPath(path)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(s.fs, resolved)
	if err != nil {
		return "", domain.FromOSError("Store.Read", err)
	}
	s.logger.Debug("ledger read", "path", resolved, "size", len(data))
	return string(data), nil
}

// Save writes content to <ledgersDir>/<filename> and returns the absolute path.
func (s *Store) Save(filename, content string) (string, error) {
	return s.WriteName(filename, []byte(content))
}

// WriteName creates or overwrites <ledgersDir>/<filename>.
func (s *Store) WriteName(filename string, data []byte) (string, error) {
	path, err := s.pathFor(filename)
	if err != nil {
		return "", err
	}
	if err := afero.WriteFile(s.fs, path, data, filePerm); err != nil {
		return "", domain.NewDomainError("Store.Save", domain.ErrIO,
			fmt.Sprintf("failed to save ledger: %v", err))
	}
	s.logger.Debug("ledger written", "path", path, "size", len(data))
	return path, nil
}

// Delete removes the ledger file at path.
func (s *Store) Delete(path string) error {
	resolved, err := s.checkPath(path)
	if err != nil {
		return err
	}
	info, err := s.fs.Stat(resolved)
	if err != nil {
		return domain.FromOSError("Store.Delete", err)
	}
	if info.IsDir() {
		return domain.NewDomainError("Store.Delete", domain.ErrIO,
			fmt.Sprintf("%s is a directory", resolved))
	}
	if err := s.fs.Remove(resolved); err != nil {
		return domain.FromOSError("Store.Delete", err)
	}
	s.logger.Debug("ledger deleted", "path", resolved)
	return nil
}

// Exists reports whether <ledgersDir>/<filename> is present.
func (s *Store) Exists(filename string) (bool, error) {
	path, err := s.pathFor(filename)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, domain.FromOSError("Store.Exists", err)
	}
	return ok, nil
}

// pathFor maps a filename to its location in the ledgers directory.
func (s *Store) pathFor(filename string) (string, error) {
	dir, err := s.Dir()
	if err != nil {
		return "", err
	}
	if !s.confine {
		return filepath.Join(dir, filename), nil
	}
	sandbox, err := security.NewSandbox(dir)
	if err != nil {
		return "", domain.NewDomainError("Store.pathFor", domain.ErrIO, err.Error())
	}
	return sandbox.ResolveName(filename)
}

// checkPath validates a caller-supplied path. Unconfined stores trust it as-is.
func (s *Store) checkPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", domain.NewDomainError("Store.checkPath", domain.ErrInvalidInput, "empty path")
	}
	if !s.confine {
		return path, nil
	}
	dir, err := s.Dir()
	if err != nil {
		return "", err
	}
	sandbox, err := security.NewSandbox(dir)
	if err != nil {
		return "", domain.NewDomainError("Store.checkPath", domain.ErrIO, err.Error())
	}
	return sandbox.ValidatePath(path)
}

// displayName reads the top-level "name" field, falling back to filename on
// any read or parse problem. The key match is exact: "Name" is not "name".
func (s *Store) displayName(path, filename string) string {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		s.logger.Debug("ledger name unreadable", "path", path, "error", err)
		return filename
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		s.logger.Debug("ledger name unparseable", "path", path, "error", err)
		return filename
	}
	raw, ok := fields["name"]
	if !ok {
		return filename
	}
	var name *string
	if err := json.Unmarshal(raw, &name); err != nil || name == nil {
		s.logger.Debug("ledger name is not a string", "path", path, "error", err)
		return filename
	}
	return *name
}

func isLedgerFile(name string) bool {
	return len(name) > len(domain.LedgerExt) && strings.HasSuffix(name, domain.LedgerExt)
}

func unixSeconds(info os.FileInfo) int64 {
	mod := info.ModTime()
	if mod.IsZero() || mod.Unix() < 0 {
		return 0
	}
	return mod.Unix()
}
