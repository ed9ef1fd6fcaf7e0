package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"ironbank/internal/adapter/ledgerfs"
	"ironbank/internal/adapter/opener"
	"ironbank/internal/adapter/resource"
	"ironbank/internal/domain"
	"ironbank/internal/infra/config"
	"ironbank/internal/infra/logger"
	"ironbank/internal/infra/paths"
	"ironbank/internal/infra/tracer"
	"ironbank/internal/security"
	"ironbank/internal/usecase"
	"ironbank/internal/usecase/eventbus"
)

// app holds the wired components shared by every command.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	docs  *paths.DocumentsLocator
	bus   *eventbus.Bus
	svc   *usecase.LedgerService
	audit auditJournal        // nil when audit is disabled
	trail *usecase.AuditTrail // nil when audit is disabled

	closers []func() error // run in reverse order
}

// auditJournal is implemented by both journal backends.
type auditJournal interface {
	domain.AuditLogger
	domain.AuditReader
	SetRetention(policy security.RetentionPolicy)
	EnforceRetention(ctx context.Context) (int, error)
	Path() string
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, domain.NewDomainError("Config.Load", domain.ErrConfigLoad, err.Error())
	}

	log, logClose, err := logger.New(cfg.Logger, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, logClose)

	shutdown, err := tracer.Setup(ctx, cfg.Tracer, cfg.App.Name)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	a.docs = paths.NewDocumentsLocator(cfg.Ledgers.DocumentsDir)
	store := ledgerfs.NewStore(a.docs, log, ledgerfs.WithConfinement(cfg.Ledgers.ConfinePaths))

	packaged := cfg.Resources.Dir
	if packaged == "" {
		packaged = paths.ExecutableDir()
	}
	resources := resource.New(afero.NewOsFs(), resource.Options{
		PackagedDir: packaged,
		WorkingDir:  paths.WorkingDir(),
		DevFallback: cfg.App.IsDev(),
	}, log)

	a.bus = eventbus.New(log)
	if cfg.Audit.Enabled {
		if err := a.openAudit(); err != nil {
			a.bus.Close()
			a.Close()
			return nil, err
		}
	}
	// Closers run in reverse: the bus drains before the journal closes.
	a.closers = append(a.closers, func() error { a.bus.Close(); return nil })

	a.svc = usecase.NewLedgerService(store, resources, opener.New(cfg.Opener.Command, log), a.bus, log)

	return a, nil
}

// seed places the tutorial ledger on first launch of a long-running session.
// One-shot commands never seed, so they only write what they are asked to.
// Failures are logged by the service and never stop the process.
func (a *app) seed(ctx context.Context) {
	a.svc.SeedTutorial(ctx)
}

func (a *app) openAudit() error {
	path := a.cfg.Audit.Path
	if path == "" {
		docs, err := a.docs.DocumentsDir()
		if err != nil {
			return err
		}
		path = filepath.Join(docs, domain.AppDirName, a.cfg.Audit.DefaultFilename())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return domain.FromOSError("Audit.Open", err)
	}

	var audit auditJournal
	var err error
	if a.cfg.Audit.Backend == "sqlite" {
		audit, err = security.NewSQLiteAuditLogger(path)
	} else {
		audit, err = security.NewFileAuditLogger(path)
	}
	if err != nil {
		return err
	}
	maxSize, err := a.cfg.Audit.MaxSizeBytes()
	if err != nil {
		audit.Close()
		return err
	}
	audit.SetRetention(security.RetentionPolicy{MaxAge: a.cfg.Audit.MaxAge, MaxSize: maxSize})

	a.audit = audit
	a.trail = usecase.NewAuditTrail(audit, a.log)
	a.trail.Attach(a.bus)
	a.closers = append(a.closers, audit.Close)
	return nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
