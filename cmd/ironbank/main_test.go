package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"ironbank/internal/adapter/gateway"
	"ironbank/internal/domain"
	"ironbank/internal/infra/config"
)

const testTemplate = `{"name":"Tutorial","accounts":[]}`

type env struct {
	cfgPath string
	docs    string
	ledgers string
}

// newEnv writes a config pointing at temp documents and resources folders.
func newEnv(t *testing.T, extra string) env {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "Documents")
	res := filepath.Join(root, "install")
	require.NoError(t, os.MkdirAll(filepath.Join(res, domain.ResourcesDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(res, domain.ResourcesDirName, domain.TutorialFilename), []byte(testTemplate), 0644))

	cfg := fmt.Sprintf(`app:
  env: prod
ledgers:
  documents_dir: %q
resources:
  dir: %q
opener:
  command: "true"
logger:
  level: error
  output: %q
%s`, docs, res, filepath.Join(root, "ironbank.log"), extra)
	cfgPath := filepath.Join(root, "ironbank.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0600))

	return env{cfgPath: cfgPath, docs: docs, ledgers: filepath.Join(docs, domain.AppDirName, domain.LedgersDirName)}
}

func (e env) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	argv := append([]string{"--config", e.cfgPath}, args...)
	code := run(context.Background(), argv, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSplitConfigFlag(t *testing.T) {
	t.Setenv("IRONBANK_CONFIG", "")

	path, rest := splitConfigFlag([]string{"list", "--config", "/etc/ib.yaml", "--paths"})
	assert.Equal(t, "/etc/ib.yaml", path)
	assert.Equal(t, []string{"list", "--paths"}, rest)

	path, rest = splitConfigFlag([]string{"--config=/tmp/x.yaml", "dir"})
	assert.Equal(t, "/tmp/x.yaml", path)
	assert.Equal(t, []string{"dir"}, rest)

	path, _ = splitConfigFlag(nil)
	assert.Equal(t, "ironbank.yaml", path)

	t.Setenv("IRONBANK_CONFIG", "/from/env.yaml")
	path, _ = splitConfigFlag([]string{"dir"})
	assert.Equal(t, "/from/env.yaml", path)
}

func TestRunOneShotCommandsDoNotSeed(t *testing.T) {
	e := newEnv(t, "")

	code, out, stderr := e.run(t, "", "tutorial")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, testTemplate, out)

	_, err := os.Stat(e.docs)
	assert.True(t, os.IsNotExist(err), "tutorial must leave the documents folder untouched")

	code, out, stderr = e.run(t, "", "dir")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, e.ledgers, strings.TrimSpace(out))

	_, err = os.Stat(filepath.Join(e.ledgers, domain.TutorialFilename))
	assert.True(t, os.IsNotExist(err))
}

func TestRunDeletedTutorialStaysDeleted(t *testing.T) {
	e := newEnv(t, "")
	tutorial := filepath.Join(e.ledgers, domain.TutorialFilename)

	code, _, stderr := e.run(t, "", "reset-tutorial")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = e.run(t, "", "delete", tutorial)
	require.Equal(t, 0, code, stderr)

	code, out, stderr := e.run(t, "", "list", "--paths")
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, out, tutorial)
}

func TestSeedWritesTutorialOnce(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	a, err := newApp(ctx, e.cfgPath)
	require.NoError(t, err)
	defer a.Close()

	tutorial := filepath.Join(e.ledgers, domain.TutorialFilename)
	a.seed(ctx)
	data, err := os.ReadFile(tutorial)
	require.NoError(t, err)
	assert.Equal(t, testTemplate, string(data))

	require.NoError(t, os.WriteFile(tutorial, []byte(`{"name":"mine"}`), 0644))
	a.seed(ctx)
	data, err = os.ReadFile(tutorial)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"mine"}`, string(data))
}

func TestRunSaveListReadDelete(t *testing.T) {
	e := newEnv(t, "")

	code, out, stderr := e.run(t, `{"name":"Household"}`, "save", "house.json")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, filepath.Join(e.ledgers, "house.json"))

	code, out, _ = e.run(t, "", "list", "--paths")
	require.Equal(t, 0, code)
	assert.Contains(t, out, filepath.Join(e.ledgers, "house.json"))
	assert.NotContains(t, out, domain.TutorialFilename)

	code, out, _ = e.run(t, "", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Household")

	target := filepath.Join(e.ledgers, "house.json")
	code, out, _ = e.run(t, "", "read", target)
	require.Equal(t, 0, code)
	assert.Equal(t, `{"name":"Household"}`, out)

	code, _, _ = e.run(t, "", "delete", target)
	require.Equal(t, 0, code)

	code, _, stderr = e.run(t, "", "delete", target)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, string(domain.CodeNotFound))
}

func TestRunSaveFromFile(t *testing.T) {
	e := newEnv(t, "")
	src := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"name":"From File"}`), 0644))

	code, _, stderr := e.run(t, "", "save", "file.json", src)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(filepath.Join(e.ledgers, "file.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"From File"}`, string(data))
}

func TestRunReadOutsideSandbox(t *testing.T) {
	e := newEnv(t, "")

	code, _, stderr := e.run(t, "", "read", "/etc/hostname")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, string(domain.CodePathOutsideSandbox))
}

func TestRunResetTutorialAndTemplate(t *testing.T) {
	e := newEnv(t, "")
	tutorial := filepath.Join(e.ledgers, domain.TutorialFilename)

	code, _, _ := e.run(t, "", "dir")
	require.Equal(t, 0, code)
	require.NoError(t, os.WriteFile(tutorial, []byte(`{"name":"edited"}`), 0644))

	code, out, _ := e.run(t, "", "tutorial")
	require.Equal(t, 0, code)
	assert.Equal(t, testTemplate, out)

	data, _ := os.ReadFile(tutorial)
	assert.Equal(t, `{"name":"edited"}`, string(data), "tutorial must not write")

	code, _, stderr := e.run(t, "", "reset-tutorial")
	require.Equal(t, 0, code, stderr)
	data, _ = os.ReadFile(tutorial)
	assert.Equal(t, testTemplate, string(data))
}

func TestRunOpen(t *testing.T) {
	e := newEnv(t, "")
	code, out, stderr := e.run(t, "", "open")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "opened")
}

func TestRunUsageErrors(t *testing.T) {
	e := newEnv(t, "")

	code, _, stderr := e.run(t, "", "read")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "usage: ironbank read <path>")

	code, _, stderr = e.run(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRunDefaultShowsUsageWhenGatewayDisabled(t *testing.T) {
	e := newEnv(t, "")
	code, out, _ := e.run(t, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "USAGE:")
}

func TestRunInvalidConfig(t *testing.T) {
	e := newEnv(t, "gateway:\n  enabled: true\n  auth:\n    type: kerberos\n")
	code, _, stderr := e.run(t, "", "dir")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, string(domain.CodeConfigLoad))
}

func TestRunAuditJournal(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "audit.jsonl")
	e := newEnv(t, fmt.Sprintf("audit:\n  enabled: true\n  path: %q\n", journal))

	code, _, stderr := e.run(t, `{}`, "save", "a.json")
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(journal)
	require.NoError(t, err)
	assert.Contains(t, string(data), string(domain.AuditLedgerSaved))
	assert.NotContains(t, string(data), string(domain.AuditTutorialSeeded))
}

func TestRunAuditCommand(t *testing.T) {
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			e := newEnv(t, fmt.Sprintf("audit:\n  enabled: true\n  backend: %s\n", backend))

			code, _, stderr := e.run(t, `{}`, "save", "a.json")
			require.Equal(t, 0, code, stderr)

			code, stdout, stderr := e.run(t, "", "audit")
			require.Equal(t, 0, code, stderr)
			assert.Contains(t, stdout, string(domain.AuditLedgerSaved))

			code, stdout, stderr = e.run(t, "", "audit", "--type", string(domain.AuditLedgerSaved), "--json")
			require.Equal(t, 0, code, stderr)
			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			require.Len(t, lines, 1)
			var entry domain.AuditEvent
			require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
			assert.Equal(t, domain.AuditLedgerSaved, entry.Type)
			assert.Equal(t, filepath.Join(e.ledgers, "a.json"), entry.Resource)

			_, err := os.Stat(filepath.Join(e.docs, domain.AppDirName, "audit."+map[string]string{"jsonl": "jsonl", "sqlite": "db"}[backend]))
			assert.NoError(t, err)
		})
	}
}

func TestRunAuditDisabled(t *testing.T) {
	e := newEnv(t, "")
	code, _, stderr := e.run(t, "", "audit")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "disabled")
}

func TestParseAuditFlags(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f, err := parseAuditFlags([]string{"--type=access_denied", "--limit", "5", "--since", "2h", "--json"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.AuditAccessDenied, f.query.Type)
	assert.Equal(t, 5, f.query.Limit)
	assert.Equal(t, now.Add(-2*time.Hour), f.query.Since)
	assert.True(t, f.json)

	f, err = parseAuditFlags(nil, now)
	require.NoError(t, err)
	assert.Equal(t, 20, f.query.Limit)

	for _, bad := range [][]string{{"--limit"}, {"--limit", "x"}, {"--since", "soon"}, {"--bogus", "1"}} {
		_, err := parseAuditFlags(bad, now)
		assert.Equal(t, domain.CodeInvalidInput, domain.ErrorCodeOf(err), bad)
	}
}

func TestRunEncryptSecret(t *testing.T) {
	t.Setenv("IRONBANK_CONFIG_KEY", "correct horse")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"encrypt-secret"}, strings.NewReader("s3cret\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := strings.TrimSpace(stdout.String())
	require.True(t, strings.HasPrefix(out, "enc:"))
	plain, err := config.DecryptValue(strings.TrimPrefix(out, "enc:"), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestRunEncryptSecretWithoutKey(t *testing.T) {
	t.Setenv("IRONBANK_CONFIG_KEY", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"encrypt-secret"}, strings.NewReader("x"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "IRONBANK_CONFIG_KEY")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServeAnswersLedgerRPC(t *testing.T) {
	addr := freeAddr(t)
	e := newEnv(t, fmt.Sprintf(`gateway:
  enabled: true
  addr: %q
  auth:
    type: static
    tokens:
      - token: desk
        name: desktop
      - token: look
        name: auditor
        roles: [viewer]
`, addr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := newApp(ctx, e.cfgPath)
	require.NoError(t, err)
	defer a.Close()

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, a, nil, nil, nil) }()

	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		dctx, dcancel := context.WithTimeout(ctx, time.Second)
		defer dcancel()
		ws, _, err = websocket.Dial(dctx, "ws://"+addr+"/ws?token=look", nil)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
	defer ws.Close(websocket.StatusNormalClosure, "")

	call := func(id uint64, method, payload string) gateway.Frame {
		rctx, rcancel := context.WithTimeout(ctx, 3*time.Second)
		defer rcancel()
		req := gateway.Frame{Type: gateway.FrameTypeRequest, ID: id, Method: method}
		if payload != "" {
			req.Payload = json.RawMessage(payload)
		}
		require.NoError(t, wsjson.Write(rctx, ws, req))
		for {
			var resp gateway.Frame
			require.NoError(t, wsjson.Read(rctx, ws, &resp))
			if resp.Type == gateway.FrameTypeResponse && resp.ID == id {
				return resp
			}
		}
	}

	list := call(1, gateway.MethodList, "")
	require.Empty(t, list.Error)
	var items []domain.LedgerSummary
	require.NoError(t, json.Unmarshal(list.Payload, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Tutorial", items[0].Name)

	denied := call(2, gateway.MethodSave, `{"filename":"x.json","content":"{}"}`)
	assert.Equal(t, string(domain.CodeForbidden), denied.Code)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
