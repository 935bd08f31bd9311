// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/toeirei/blockmove/internal/config"
	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/testutil"
	"golang.org/x/crypto/ssh"
)

// testEnv isolates config discovery and points the database at a fresh
// SQLite file. It returns the DSN.
func testEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Setenv(config.SecretsEnv, "")
	dsn := filepath.Join(tmp, "blockmove.db")
	t.Setenv("BLOCKMOVE_DATABASE_TYPE", "sqlite")
	t.Setenv("BLOCKMOVE_DATABASE_DSN", dsn)
	return dsn
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "keys", "audit", "sessions", "db", "config", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
	if root.Flags().Lookup("listen") == nil {
		t.Fatal("root should accept serve flags")
	}
}

func TestVersionCmd_PrintsFields(t *testing.T) {
	testEnv(t)
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "version: ") || !strings.Contains(out, "commit: ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestKeysCheck_ListsFingerprints(t *testing.T) {
	testEnv(t)
	signer, line := testutil.NewKey(t, "alice@example")
	_, other := testutil.NewKey(t, "")
	path := testutil.WriteFile(t, "authorized_keys", "# players\n"+line+"\n\n"+`from="10.0.0.0/8" `+other+"\n")

	out, err := runCLI(t, "keys", "check", path)
	if err != nil {
		t.Fatalf("keys check: %v", err)
	}
	if !strings.Contains(out, "alice@example") {
		t.Fatalf("comment missing from %q", out)
	}
	if !strings.Contains(out, ssh.FingerprintSHA256(signer.PublicKey())) {
		t.Fatalf("fingerprint missing from %q", out)
	}
	if !strings.Contains(out, `from="10.0.0.0/8"`) {
		t.Fatalf("options missing from %q", out)
	}
	if !strings.Contains(out, "2 authorized keys") {
		t.Fatalf("count missing from %q", out)
	}
}

func TestKeysCheck_UsesSecretsLocation(t *testing.T) {
	testEnv(t)
	_, line := testutil.NewKey(t, "env")
	path := testutil.WriteFile(t, "authorized_keys", line+"\n")
	t.Setenv(config.SecretsEnv, path)

	out, err := runCLI(t, "keys", "check")
	if err != nil {
		t.Fatalf("keys check: %v", err)
	}
	if !strings.Contains(out, "1 authorized keys loaded from "+path) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestKeysCheck_MalformedReportsLine(t *testing.T) {
	testEnv(t)
	_, line := testutil.NewKey(t, "")
	path := testutil.WriteFile(t, "authorized_keys", line+"\nssh-ed25519 not-base64!!\n")

	_, err := runCLI(t, "keys", "check", path)
	var ce *credstore.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Line != 2 {
		t.Fatalf("line = %d, want 2", ce.Line)
	}
}

func TestKeysCheck_KeyLookup(t *testing.T) {
	testEnv(t)
	signer, line := testutil.NewKey(t, "alice@example")
	_, stranger := testutil.NewKey(t, "mallory")
	path := testutil.WriteFile(t, "authorized_keys", line+"\n")
	known := testutil.WriteFile(t, "alice.pub", "# alice\n"+line+"\n")
	unknown := testutil.WriteFile(t, "mallory.pub", stranger+"\n")

	out, err := runCLI(t, "keys", "check", path, "--key", known)
	if err != nil {
		t.Fatalf("keys check --key: %v", err)
	}
	if !strings.Contains(out, "authorized: "+ssh.FingerprintSHA256(signer.PublicKey())+" alice@example") {
		t.Fatalf("expected match line in %q", out)
	}

	out, err = runCLI(t, "keys", "check", path, "--key", unknown)
	if !errors.Is(err, errKeyNotAuthorized) {
		t.Fatalf("expected errKeyNotAuthorized, got %v", err)
	}
	if !strings.Contains(out, "not authorized: ") {
		t.Fatalf("expected no-match line in %q", out)
	}
}

func TestKeysCheck_NoPath(t *testing.T) {
	testEnv(t)
	if _, err := runCLI(t, "keys", "check"); err == nil || !strings.Contains(err.Error(), config.SecretsEnv) {
		t.Fatalf("expected missing path error, got %v", err)
	}
}

func seedAudit(t *testing.T, dsn string, entries ...model.AuditLogEntry) {
	t.Helper()
	st, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()
	for _, e := range entries {
		if err := st.LogAction(context.Background(), e); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}
}

func TestAuditList_JSONWhenNotATerminal(t *testing.T) {
	dsn := testEnv(t)
	now := time.Now().UTC().Truncate(time.Second)
	seedAudit(t, dsn,
		model.AuditLogEntry{Timestamp: now.Add(-time.Minute), Actor: "SHA256:a", Action: model.ActionAuthAccept},
		model.AuditLogEntry{Timestamp: now, Actor: "invalid", Action: model.ActionAuthReject, Details: "reason=unknown"},
	)

	out, err := runCLI(t, "audit", "list", "--limit", "1")
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
	var got model.AuditLogEntry
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("not JSON: %v (%q)", err, lines[0])
	}
	if got.Action != model.ActionAuthReject {
		t.Fatalf("newest entry should come first, got %+v", got)
	}
}

func TestWriteAuditTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAuditTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No audit entries.") {
		t.Fatalf("got %q", buf.String())
	}
	buf.Reset()
	err := writeAuditTable(&buf, []model.AuditLogEntry{{Timestamp: time.Now(), Action: model.ActionGameOver, Actor: "SHA256:x"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "TIME") || !strings.Contains(buf.String(), model.ActionGameOver) {
		t.Fatalf("got %q", buf.String())
	}
}

func TestAuditExport_WritesZstd(t *testing.T) {
	dsn := testEnv(t)
	seedAudit(t, dsn,
		model.AuditLogEntry{Actor: "SHA256:a", Action: model.ActionSessionStart},
		model.AuditLogEntry{Actor: "SHA256:a", Action: model.ActionSessionEnd},
	)
	file := filepath.Join(t.TempDir(), "audit.jsonl.zst")

	out, err := runCLI(t, "audit", "export", file)
	if err != nil {
		t.Fatalf("audit export: %v", err)
	}
	if !strings.Contains(out, "Exported 2 audit entries") {
		t.Fatalf("unexpected output %q", out)
	}
	f, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	entries, err := db.ReadAuditExport(f)
	if err != nil {
		t.Fatalf("ReadAuditExport: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != model.ActionSessionStart {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestAuditPrune(t *testing.T) {
	dsn := testEnv(t)
	seedAudit(t, dsn,
		model.AuditLogEntry{Timestamp: time.Now().Add(-48 * time.Hour), Action: model.ActionAuthReject},
		model.AuditLogEntry{Timestamp: time.Now(), Action: model.ActionAuthAccept},
	)
	if _, err := runCLI(t, "audit", "prune"); err == nil {
		t.Fatal("prune without --older-than should fail")
	}
	out, err := runCLI(t, "audit", "prune", "--older-than", "24h")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 1 audit entries") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSessionsList(t *testing.T) {
	dsn := testEnv(t)
	st, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now().Add(-time.Minute)
	rec := model.GameSession{ID: "s1", Fingerprint: "SHA256:abc", Username: "alice", Remote: "127.0.0.1:5000", StartedAt: start}
	if err := st.StartSession(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	rec.EndedAt = start.Add(30 * time.Second)
	rec.CloseReason = "quit"
	rec.PiecesLanded = 7
	if err := st.EndSession(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	_ = st.Close()

	out, err := runCLI(t, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	for _, want := range []string{"alice", "SHA256:abc", "30s", "quit"} {
		if !strings.Contains(out, want) {
			t.Fatalf("%q missing from %q", want, out)
		}
	}
}

func TestDBMaintain_SQLite(t *testing.T) {
	dsn := testEnv(t)
	out, err := runCLI(t, "db", "maintain", "--database.dsn", dsn, "--timeout", "30")
	if err != nil {
		t.Fatalf("db maintain: %v", err)
	}
	if !strings.Contains(out, "Database maintenance complete.") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigWrite_ToPath(t *testing.T) {
	testEnv(t)
	t.Setenv("BLOCKMOVE_LISTEN", ":2200")
	file := filepath.Join(t.TempDir(), "out", "blockmove.yaml")

	if _, err := runCLI(t, "config", "write", "-o", file); err != nil {
		t.Fatalf("config write: %v", err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), ":2200") {
		t.Fatalf("effective listen address not persisted:\n%s", data)
	}

	out, err := runCLI(t, "--config", file, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, ":2200") {
		t.Fatalf("show did not read the written file:\n%s", out)
	}
}

func TestServe_RequiresSecretsLocation(t *testing.T) {
	testEnv(t)
	_, err := runCLI(t, "serve", "--listen", "127.0.0.1:0")
	if err == nil || !strings.Contains(err.Error(), config.SecretsEnv) {
		t.Fatalf("expected missing %s error, got %v", config.SecretsEnv, err)
	}
}

func TestServe_MalformedKeysAbortStartup(t *testing.T) {
	testEnv(t)
	path := testutil.WriteFile(t, "authorized_keys", "ssh-rsa AAAA-broken\n")
	t.Setenv(config.SecretsEnv, path)

	_, err := runCLI(t, "serve", "--listen", "127.0.0.1:0", "--host-key", filepath.Join(t.TempDir(), "host_key"))
	var ce *credstore.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestServe_ListensUntilCancelled(t *testing.T) {
	dsn := testEnv(t)
	_, line := testutil.NewKey(t, "")
	keys := testutil.WriteFile(t, "authorized_keys", line+"\n")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	t.Setenv(config.SecretsEnv, keys)
	c, _ := config.LoadConfig[config.Config](nil, config.Defaults(), nil)
	c.Listen = addr
	c.HostKey = filepath.Join(t.TempDir(), "host_key")
	c.Database.Dsn = dsn
	c.WatchSecrets = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server never listened: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := os.Stat(c.HostKey); err != nil {
		t.Fatalf("host key not generated: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
