// Package resource locates read-only files bundled with the application.
package resource

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"ironbank/internal/domain"
)

// Resolver is one candidate location for bundled resources.
type Resolver interface {
	// Name identifies the candidate in logs (e.g. "packaged", "dev").
	Name() string
	// Resolve returns the path of name under this candidate and whether it exists.
	Resolve(name string) (string, bool)
}

// DirResolver looks for resources under <dir>/resources/.
type DirResolver struct {
	label string
	dir   string
	fs    afero.Fs
}

// NewDirResolver creates a resolver rooted at dir.
func NewDirResolver(label, dir string, fs afero.Fs) *DirResolver {
	return &DirResolver{label: label, dir: dir, fs: fs}
}

func (r *DirResolver) Name() string { return r.label }

func (r *DirResolver) Resolve(name string) (string, bool) {
	if strings.TrimSpace(r.dir) == "" {
		return "", false
	}
	p := filepath.Join(r.dir, domain.ResourcesDirName, name)
	info, err := r.fs.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return p, false
	}
	return p, true
}

// Locator tries its resolvers in order; the first hit wins.
type Locator struct {
	fs        afero.Fs
	resolvers []Resolver
	logger    *slog.Logger
}

// NewLocator creates a locator reading resources through fs.
func NewLocator(fs afero.Fs, logger *slog.Logger, resolvers ...Resolver) *Locator {
	return &Locator{fs: fs, resolvers: resolvers, logger: logger}
}

// Find returns the first candidate path that holds name.
func (l *Locator) Find(name string) (string, error) {
	tried := make([]string, 0, len(l.resolvers))
	for _, r := range l.resolvers {
		p, ok := r.Resolve(name)
		if ok {
			l.logger.Debug("resource found", "name", name, "resolver", r.Name(), "path", p)
			return p, nil
		}
		tried = append(tried, fmt.Sprintf("%s=%s", r.Name(), p))
	}
	return "", domain.NewDomainError("Resources.Find", domain.ErrResourceMissing,
		fmt.Sprintf("%s not found (tried %s)", name, strings.Join(tried, ", ")))
}

// ReadFile returns the contents of the first candidate that holds name.
func (l *Locator) ReadFile(name string) ([]byte, error) {
	p, err := l.Find(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(l.fs, p)
	if err != nil {
		return nil, domain.NewDomainError("Resources.ReadFile", domain.ErrIO,
			fmt.Sprintf("failed to read %s: %v", p, err))
	}
	return data, nil
}

// Options selects the candidate locations for a Locator.
type Options struct {
	PackagedDir string // install location of bundled resources
	WorkingDir  string // checked only when DevFallback is set
	DevFallback bool
}

// New builds the standard packaged-then-dev lookup chain on fs.
func New(fs afero.Fs, opts Options, logger *slog.Logger) *Locator {
	resolvers := []Resolver{NewDirResolver("packaged", opts.PackagedDir, fs)}
	if opts.DevFallback {
		resolvers = append(resolvers, NewDirResolver("dev", opts.WorkingDir, fs))
	}
	return NewLocator(fs, logger, resolvers...)
}
