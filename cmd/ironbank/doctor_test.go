package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"ironbank/internal/domain"
	"ironbank/internal/infra/config"
)

func TestCheckConfigFile_Missing(t *testing.T) {
	result := checkConfigFile("/nonexistent/ironbank.yaml", nil)(nil)
	if result.Status != StatusWarn {
		t.Errorf("expected WARN for missing config, got %s", result.Status)
	}
}

func TestCheckConfigFile_Error(t *testing.T) {
	result := checkConfigFile("ironbank.yaml", &config.ValidationError{Errors: []string{"bad"}})(nil)
	if result.Status != StatusFail {
		t.Errorf("expected FAIL for config error, got %s", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected fix suggestion")
	}
}

func TestCheckConfigFile_Valid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ironbank.yaml")
	if err := os.WriteFile(p, []byte("app:\n  env: prod\n"), 0600); err != nil {
		t.Fatal(err)
	}
	result := checkConfigFile(p, nil)(nil)
	if result.Status != StatusPass {
		t.Errorf("expected PASS, got %s: %s", result.Status, result.Message)
	}
}

func cfgWithDocs(docs string) *config.Config {
	cfg := config.Defaults()
	cfg.Ledgers.DocumentsDir = docs
	return cfg
}

func TestCheckDocuments(t *testing.T) {
	docs := t.TempDir()
	if r := checkDocuments(cfgWithDocs(docs)); r.Status != StatusPass {
		t.Errorf("existing docs: %s %s", r.Status, r.Message)
	}
	if r := checkDocuments(cfgWithDocs(filepath.Join(docs, "missing"))); r.Status != StatusWarn {
		t.Errorf("missing docs: %s", r.Status)
	}
}

func TestCheckLedgersDir(t *testing.T) {
	docs := t.TempDir()
	if r := checkLedgersDir(cfgWithDocs(docs)); r.Status != StatusWarn {
		t.Errorf("absent ledgers dir: %s", r.Status)
	}

	dir := filepath.Join(docs, domain.AppDirName, domain.LedgersDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	r := checkLedgersDir(cfgWithDocs(docs))
	if r.Status != StatusPass {
		t.Fatalf("status = %s", r.Status)
	}
	if want := "(1 ledgers)"; !bytes.Contains([]byte(r.Message), []byte(want)) {
		t.Errorf("message = %q, want %q", r.Message, want)
	}
}

func TestCheckLedgersDirDoesNotCreate(t *testing.T) {
	docs := t.TempDir()
	checkLedgersDir(cfgWithDocs(docs))
	if _, err := os.Stat(filepath.Join(docs, domain.AppDirName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("doctor created the ledgers directory")
	}
}

func TestCheckTutorialTemplate(t *testing.T) {
	res := t.TempDir()
	cfg := config.Defaults()
	cfg.Resources.Dir = res

	if r := checkTutorialTemplate(cfg); r.Status != StatusWarn {
		t.Errorf("missing template: %s", r.Status)
	}

	os.MkdirAll(filepath.Join(res, domain.ResourcesDirName), 0755)
	os.WriteFile(filepath.Join(res, domain.ResourcesDirName, domain.TutorialFilename), []byte("{}"), 0644)
	if r := checkTutorialTemplate(cfg); r.Status != StatusPass {
		t.Errorf("present template: %s %s", r.Status, r.Message)
	}
}

func TestCheckFileManager(t *testing.T) {
	cfg := config.Defaults()
	cfg.Opener.Command = "ironbank-no-such-launcher"
	if r := checkFileManager(cfg); r.Status != StatusWarn {
		t.Errorf("missing launcher: %s", r.Status)
	}
}

func TestCheckGateway(t *testing.T) {
	if r := checkGateway(config.Defaults()); r.Status != StatusPass {
		t.Errorf("disabled gateway: %s", r.Status)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := config.Defaults()
	cfg.Gateway.Enabled = true
	cfg.Gateway.Addr = ln.Addr().String()
	if r := checkGateway(cfg); r.Status != StatusFail {
		t.Errorf("busy port: %s", r.Status)
	}

	cfg.Gateway.Addr = "0.0.0.0:0"
	if r := checkGateway(cfg); r.Status != StatusWarn {
		t.Errorf("open unauthenticated gateway: %s", r.Status)
	}
}

func TestCheckAuditPermissions(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(p, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Audit.Enabled = true
	cfg.Audit.Path = p

	if r := checkAudit(cfg); r.Status != StatusWarn {
		t.Errorf("world-readable journal: %s", r.Status)
	}
	os.Chmod(p, 0600)
	if r := checkAudit(cfg); r.Status != StatusPass {
		t.Errorf("private journal: %s", r.Status)
	}
}

func TestStatusIcon(t *testing.T) {
	for _, s := range []CheckStatus{StatusPass, StatusWarn, StatusFail} {
		if !bytes.Contains([]byte(statusIcon(s)), []byte(string(s))) {
			t.Errorf("statusIcon(%s) = %q", s, statusIcon(s))
		}
	}
}

func TestRunDoctorFailsOnBadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ironbank.yaml")
	if err := os.WriteFile(p, []byte("logger:\n  level: loud\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := runDoctor(context.Background(), p, &out)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !bytes.Contains(out.Bytes(), []byte("Results:")) {
		t.Errorf("missing summary:\n%s", out.String())
	}
}
