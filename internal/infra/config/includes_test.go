package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIncludesSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "opener.yaml", `
opener:
  command: "dolphin"
`)
	path := writeConfigFile(t, dir, "ironbank.yaml", `
includes:
  - "opener.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Opener.Command != "dolphin" {
		t.Errorf("Opener.Command = %q, want %q", cfg.Opener.Command, "dolphin")
	}
}

func TestIncludesGlobPattern(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "conf.d")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, sub, "10-logger.yaml", "logger:\n  level: debug\n")
	writeConfigFile(t, sub, "20-ledgers.yaml", "ledgers:\n  documents_dir: /data/docs\n")
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes:\n  - \"conf.d/*.yaml\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "debug" || cfg.Ledgers.DocumentsDir != "/data/docs" {
		t.Errorf("glob includes not merged: logger=%q docs=%q", cfg.Logger.Level, cfg.Ledgers.DocumentsDir)
	}
}

func TestIncludesGlobNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes:\n  - \"conf.d/*.yaml\"\n")

	if _, err := Load(path); err != nil {
		t.Errorf("empty glob should not fail: %v", err)
	}
}

func TestIncludesMainFileWins(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "base.yaml", "logger:\n  level: debug\n  format: json\n")
	path := writeConfigFile(t, dir, "ironbank.yaml", `
includes: ["base.yaml"]
logger:
  level: warn
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want main file value %q", cfg.Logger.Level, "warn")
	}
	if cfg.Logger.Format != "json" {
		t.Errorf("Logger.Format = %q, want included value %q", cfg.Logger.Format, "json")
	}
}

func TestIncludesNested(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "leaf.yaml", "opener:\n  command: leaf\n")
	writeConfigFile(t, dir, "mid.yaml", "includes: [\"leaf.yaml\"]\n")
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes: [\"mid.yaml\"]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Opener.Command != "leaf" {
		t.Errorf("Opener.Command = %q, want %q", cfg.Opener.Command, "leaf")
	}
}

func TestIncludesCircular(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "a.yaml", "includes: [\"b.yaml\"]\n")
	writeConfigFile(t, dir, "b.yaml", "includes: [\"a.yaml\"]\n")
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes: [\"a.yaml\"]\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Errorf("expected circular include error, got %v", err)
	}
}

func TestIncludesEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes: [\"../outside.yaml\"]\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "escapes config directory") {
		t.Errorf("expected escape error, got %v", err)
	}
}

func TestIncludesMissingLiteralFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "ironbank.yaml", "includes: [\"missing.yaml\"]\n")

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing include")
	}
}

func TestIncludesMaxDepth(t *testing.T) {
	cfg := Defaults()
	if err := processIncludes(cfg, t.TempDir(), nil, maxIncludeDepth+1); err == nil {
		t.Error("expected max depth error")
	}
}
