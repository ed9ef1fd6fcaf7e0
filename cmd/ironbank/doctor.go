package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"ironbank/internal/adapter/cli/theme"
	"ironbank/internal/adapter/opener"
	"ironbank/internal/adapter/resource"
	"ironbank/internal/domain"
	"ironbank/internal/infra/config"
	"ironbank/internal/infra/logger"
	"ironbank/internal/infra/paths"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function. Checks never write to disk.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func doctorChecks(cfgPath string, cfgErr error) []Check {
	return []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Documents folder", Fn: checkDocuments},
		{Name: "Ledgers directory", Fn: checkLedgersDir},
		{Name: "Tutorial template", Fn: checkTutorialTemplate},
		{Name: "File manager", Fn: checkFileManager},
		{Name: "Gateway", Fn: checkGateway},
		{Name: "Audit journal", Fn: checkAudit},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(_ context.Context, cfgPath string, w io.Writer) error {
	cfg, cfgErr := config.Load(cfgPath)

	fmt.Fprintln(w, theme.Section.Render("ironbank doctor"))

	var pass, warn, fail int
	for _, check := range doctorChecks(cfgPath, cfgErr) {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      %s %s\n", theme.TextMuted.Render("Fix:"), result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return theme.TextSuccess.Render("[PASS]")
	case StatusWarn:
		return theme.TextWarning.Render("[WARN]")
	case StatusFail:
		return theme.TextError.Render("[FAIL]")
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and parses. A
// missing file is only a warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check ironbank.yaml syntax and permissions (0600)",
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func documentsDir(cfg *config.Config) (string, error) {
	override := ""
	if cfg != nil {
		override = cfg.Ledgers.DocumentsDir
	}
	return paths.NewDocumentsLocator(override).DocumentsDir()
}

func checkDocuments(cfg *config.Config) CheckResult {
	docs, err := documentsDir(cfg)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set ledgers.documents_dir in ironbank.yaml",
		}
	}
	info, err := os.Stat(docs)
	if err != nil || !info.IsDir() {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s does not exist yet", docs),
			Fix:     "It will be created on first use; check the parent is writable",
		}
	}
	return CheckResult{Status: StatusPass, Message: docs}
}

func checkLedgersDir(cfg *config.Config) CheckResult {
	docs, err := documentsDir(cfg)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: "documents folder unavailable"}
	}
	dir := paths.LedgersDir(docs)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("%s will be created on first use", dir)}
	}
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot read %s: %v", dir, err),
			Fix:     "Check permissions on the ledgers directory",
		}
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), domain.LedgerExt) {
			n++
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s (%d ledgers)", dir, n)}
}

func checkTutorialTemplate(cfg *config.Config) CheckResult {
	opts := resource.Options{PackagedDir: paths.ExecutableDir(), WorkingDir: paths.WorkingDir()}
	if cfg != nil {
		if cfg.Resources.Dir != "" {
			opts.PackagedDir = cfg.Resources.Dir
		}
		opts.DevFallback = cfg.App.IsDev()
	}
	loc := resource.New(afero.NewOsFs(), opts, logger.Discard())

	p, err := loc.Find(domain.TutorialFilename)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: "bundled tutorial not found; reset-tutorial will fail",
			Fix:     "Set resources.dir to the folder containing resources/" + domain.TutorialFilename,
		}
	}
	return CheckResult{Status: StatusPass, Message: p}
}

func checkFileManager(cfg *config.Config) CheckResult {
	argv := opener.CommandFor(runtime.GOOS)
	if cfg != nil {
		if custom := strings.Fields(cfg.Opener.Command); len(custom) > 0 {
			argv = custom
		}
	}
	p, err := exec.LookPath(argv[0])
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s not found in PATH", argv[0]),
			Fix:     "Install it or set opener.command in ironbank.yaml",
		}
	}
	return CheckResult{Status: StatusPass, Message: p}
}

func checkGateway(cfg *config.Config) CheckResult {
	if cfg == nil || !cfg.Gateway.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	gw := cfg.Gateway
	if gw.Auth.Type == "none" {
		host, _, _ := net.SplitHostPort(gw.Addr)
		if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("unauthenticated gateway on non-loopback address %s", gw.Addr),
				Fix:     "Use gateway.auth.type: static or bind to 127.0.0.1",
			}
		}
	}
	ln, err := net.Listen("tcp", gw.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot bind %s: %v", gw.Addr, err),
			Fix:     "Pick a free port in gateway.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s (auth: %s)", gw.Addr, gw.Auth.Type)}
}

func checkAudit(cfg *config.Config) CheckResult {
	if cfg == nil || !cfg.Audit.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	path := cfg.Audit.Path
	if path == "" {
		docs, err := documentsDir(cfg)
		if err != nil {
			return CheckResult{Status: StatusFail, Message: "documents folder unavailable"}
		}
		path = filepath.Join(docs, domain.AppDirName, cfg.Audit.DefaultFilename())
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s (not created yet)", path)}
	case err != nil:
		return CheckResult{Status: StatusFail, Message: err.Error()}
	case info.Mode().Perm()&0o077 != 0:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s is readable by other users (%o)", path, info.Mode().Perm()),
			Fix:     "chmod 600 " + path,
		}
	}
	return CheckResult{Status: StatusPass, Message: path}
}
