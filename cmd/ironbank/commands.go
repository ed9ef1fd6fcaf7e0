package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"ironbank/internal/adapter/cli"
	"ironbank/internal/adapter/gateway"
	"ironbank/internal/adapter/tui/browser"
	"ironbank/internal/domain"
	"ironbank/internal/infra/config"
	"ironbank/internal/usecase"
)

type commandFunc func(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error

var commands = map[string]commandFunc{
	"":               runDefault,
	"serve":          runServe,
	"list":           runList,
	"read":           runRead,
	"save":           runSave,
	"delete":         runDelete,
	"reset-tutorial": runResetTutorial,
	"tutorial":       runTutorial,
	"dir":            runDir,
	"open":           runOpen,
	"browse":         runBrowse,
	"audit":          runAudit,
}

func usageError(usage string) error {
	return domain.NewDomainError("CLI", domain.ErrInvalidInput, "usage: ironbank "+usage)
}

func runDefault(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error {
	if !a.cfg.Gateway.Enabled {
		showUsage(stdout)
		return nil
	}
	return runServe(ctx, a, args, stdin, stdout)
}

func runList(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	items, err := a.svc.List(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "--paths" {
		fmt.Fprint(stdout, cli.LedgerPaths(items))
		return nil
	}
	fmt.Fprintln(stdout, cli.LedgerTable(items, time.Now()))
	return nil
}

func runRead(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return usageError("read <path>")
	}
	content, err := a.svc.Read(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, content)
	return nil
}

func runSave(ctx context.Context, a *app, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("save <filename> [file|-]")
	}

	var data []byte
	var err error
	if len(args) == 1 || args[1] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[1])
	}
	if err != nil {
		return domain.FromOSError("CLI.save", err)
	}

	path, err := a.svc.Save(ctx, args[0], string(data))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, cli.Success("saved %s", path))
	return nil
}

func runDelete(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if len(args) != 1 {
		return usageError("delete <path>")
	}
	if err := a.svc.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(stdout, cli.Success("deleted %s", args[0]))
	return nil
}

func runResetTutorial(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	path, err := a.svc.ResetTutorial(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, cli.Success("tutorial reset at %s", path))
	return nil
}

func runTutorial(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	content, err := a.svc.TutorialTemplate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, content)
	return nil
}

func runDir(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	dir, err := a.svc.ResolveDirectory(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, dir)
	return nil
}

func runOpen(ctx context.Context, a *app, _ []string, _ io.Reader, stdout io.Writer) error {
	if err := a.svc.OpenDirectory(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, cli.Success("opened ledgers directory"))
	return nil
}

// runServe exposes the ledger service over the WebSocket gateway until
// SIGINT/SIGTERM.
func runServe(ctx context.Context, a *app, _ []string, _ io.Reader, _ io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.seed(ctx)
	if a.audit != nil {
		go a.retentionLoop(ctx, time.Hour)
	}

	srv := buildGateway(a)
	a.log.Info("serving ledgers", "addr", a.cfg.Gateway.Addr, "auth", a.cfg.Gateway.Auth.Type)
	return srv.Start(ctx)
}

func buildGateway(a *app) *gateway.Server {
	gw := a.cfg.Gateway

	var auth gateway.Authenticator = gateway.LocalAuth{}
	if gw.Auth.Type == "static" {
		entries := make([]gateway.TokenEntry, 0, len(gw.Auth.Tokens))
		for _, t := range gw.Auth.Tokens {
			entries = append(entries, gateway.TokenEntry{Token: t.Token, Name: t.Name, Roles: t.Roles})
		}
		auth = gateway.NewStaticTokenAuth(entries)
	}

	opts := gateway.Options{
		Addr:              gw.Addr,
		AllowedOrigins:    gw.AllowedOrigins,
		RequestsPerSecond: gw.RateLimit.RequestsPerSecond,
		Burst:             gw.RateLimit.Burst,
	}
	deps := gateway.HandlerDeps{
		Ledgers:     a.svc,
		Bus:         a.bus,
		Logger:      a.log,
		Authorizer:  &usecase.RBACAuthorizer{},
		ServiceName: a.cfg.App.Name,
		Version:     version,
	}
	if a.trail != nil {
		opts.OnDenied = a.trail.Denied
		deps.AuditLogger = a.audit
	}

	srv := gateway.NewServer(a.bus, auth, opts, a.log)
	gateway.RegisterDefaultHandlers(srv, deps)
	gateway.RegisterRESTHandlers(srv, deps)
	return srv
}

// retentionLoop prunes the audit journal once at start and then every interval.
func (a *app) retentionLoop(ctx context.Context, interval time.Duration) {
	prune := func() {
		removed, err := a.audit.EnforceRetention(ctx)
		if err != nil {
			a.log.Warn("audit retention failed", "error", err)
			return
		}
		if removed > 0 {
			a.log.Info("audit retention pruned entries", "removed", removed)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// runEncryptSecret prints an enc: value for a secret read from stdin.
func runEncryptSecret(_ []string, stdin io.Reader, stdout io.Writer) error {
	passphrase := os.Getenv(config.EnvPrefix + "CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("%sCONFIG_KEY is not set", config.EnvPrefix)
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return err
	}
	secret := strings.TrimRight(string(raw), "\r\n")
	if secret == "" {
		return fmt.Errorf("no secret on stdin")
	}
	enc, err := config.EncryptValue(secret, passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "enc:"+enc)
	return nil
}

func runBrowse(ctx context.Context, a *app, _ []string, _ io.Reader, _ io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.seed(ctx)
	cfgYAML, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return browser.Run(ctx, browser.Deps{
		Ledgers: a.svc,
		Bus:     a.bus,
		Config:  string(cfgYAML),
	})
}

// auditFlags are the filters accepted by "ironbank audit".
type auditFlags struct {
	query domain.AuditQuery
	json  bool
}

// parseAuditFlags reads --type T, --limit N, --since DURATION and --json,
// each also accepted in --flag=value form.
func parseAuditFlags(args []string, now time.Time) (auditFlags, error) {
	const usage = "audit [--type TYPE] [--limit N] [--since DURATION] [--json]"
	f := auditFlags{query: domain.AuditQuery{Limit: 20}}

	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		if name == "--json" && !hasValue {
			f.json = true
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return f, usageError(usage)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--type":
			f.query.Type = domain.AuditEventType(value)
		case "--limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return f, usageError(usage)
			}
			f.query.Limit = n
		case "--since":
			d, err := time.ParseDuration(value)
			if err != nil || d <= 0 {
				return f, usageError(usage)
			}
			f.query.Since = now.Add(-d)
		default:
			return f, usageError(usage)
		}
	}
	return f, nil
}

func runAudit(ctx context.Context, a *app, args []string, _ io.Reader, stdout io.Writer) error {
	if a.audit == nil {
		return domain.NewDomainError("CLI", domain.ErrInvalidInput, "audit journal is disabled (set audit.enabled: true)")
	}
	now := time.Now()
	f, err := parseAuditFlags(args, now)
	if err != nil {
		return err
	}
	events, err := a.audit.Recent(ctx, f.query)
	if err != nil {
		return err
	}
	if f.json {
		enc := json.NewEncoder(stdout)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	fmt.Fprintln(stdout, cli.AuditTable(events, now))
	return nil
}
