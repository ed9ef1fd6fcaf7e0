package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ironbank/internal/domain"
)

// Sandbox confines ledger file operations to a single directory.
type Sandbox struct {
	root string // absolute, resolved ledgers directory
}

// NewSandbox creates a sandbox rooted at the given directory.
// The directory must already exist.
func NewSandbox(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("eval symlinks for sandbox root: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %q is not a directory", resolved)
	}

	return &Sandbox{root: resolved}, nil
}

// ValidatePath checks that a requested path resolves to within the sandbox
// and returns the resolved form. Symlinks are resolved after the path is
// made absolute, so a link inside the root pointing elsewhere is rejected.
func (s *Sandbox) ValidatePath(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrInvalidInput, "empty path")
	}

	abs, err := filepath.Abs(requested)
	if err != nil {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrPathOutsideSandbox, err.Error())
	}

	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrPathOutsideSandbox, err.Error())
	}

	if !s.Contains(resolved) || resolved == s.root {
		return "", domain.NewDomainError("Sandbox.ValidatePath", domain.ErrPathOutsideSandbox,
			fmt.Sprintf("resolved %q is outside root %q", resolved, s.root))
	}

	return resolved, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of abs and
// re-appends the missing tail. Missing components cannot be links, so the
// result is where abs would land once created.
func resolveExisting(abs string) (string, error) {
	var missing []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		// Present but unresolvable: a dangling link could point anywhere.
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("%s is a dangling link", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

// ResolveName joins a bare filename onto the root and validates the result.
// Names with a directory component are rejected; the root is flat.
func (s *Sandbox) ResolveName(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", domain.NewDomainError("Sandbox.ResolveName", domain.ErrInvalidInput,
			fmt.Sprintf("invalid filename %q", name))
	}
	if filepath.IsAbs(name) {
		return "", domain.NewDomainError("Sandbox.ResolveName", domain.ErrPathOutsideSandbox,
			fmt.Sprintf("absolute filename %q", name))
	}
	if strings.ContainsAny(name, `/\`) {
		return "", domain.NewDomainError("Sandbox.ResolveName", domain.ErrPathOutsideSandbox,
			fmt.Sprintf("filename %q names a directory", name))
	}
	return s.ValidatePath(filepath.Join(s.root, name))
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string { return s.root }

// Contains reports whether path is the root or lies beneath it. It is purely lexical.
func (s *Sandbox) Contains(path string) bool {
	p := filepath.Clean(path)
	return p == s.root || strings.HasPrefix(p, s.root+string(os.PathSeparator))
}
