package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toeirei/blockmove/internal/auth"
	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/session"
	"github.com/toeirei/blockmove/internal/testutil"
	"golang.org/x/crypto/ssh"
)

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditLogEntry
}

func (m *memAudit) LogAction(_ context.Context, e model.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memRecorder struct {
	mu      sync.Mutex
	started []model.GameSession
	ended   []model.GameSession
}

func (m *memRecorder) StartSession(_ context.Context, rec model.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, rec)
	return nil
}

func (m *memRecorder) EndSession(_ context.Context, rec model.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, rec)
	return nil
}

func (m *memRecorder) endedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ended)
}

type harness struct {
	addr     string
	host     ssh.Signer
	player   ssh.Signer
	audit    *memAudit
	recorder *memRecorder
	srv      *Server
	cancel   context.CancelFunc
	served   chan error
}

func startServer(t *testing.T, cfg Config) *harness {
	t.Helper()
	host, _ := testutil.NewKey(t, "host")
	player, line := testutil.NewKey(t, "player")
	store, err := credstore.Open(testutil.WriteFile(t, "authorized_keys", line+"\n"))
	if err != nil {
		t.Fatalf("credstore.Open: %v", err)
	}
	h := &harness{host: host, player: player, audit: &memAudit{}, recorder: &memRecorder{}, served: make(chan error, 1)}
	authn := auth.New(store, h.audit, auth.WithRejectionDelay(10*time.Millisecond))
	if cfg.Session.TickInterval == 0 {
		cfg.Session.TickInterval = 50 * time.Millisecond
	}
	h.srv, err = New(cfg, Deps{
		Signer:        host,
		Authenticator: authn,
		Store:         store,
		Audit:         h.audit,
		Recorder:      h.recorder,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	h.addr = ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.served <- h.srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.served:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return h
}

func (h *harness) dial(signer ssh.Signer) (*ssh.Client, error) {
	return ssh.Dial("tcp", h.addr, &ssh.ClientConfig{
		User:            "alice",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.FixedHostKey(h.host.PublicKey()),
		Timeout:         5 * time.Second,
	})
}

// syncBuffer collects session output for polling.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type shell struct {
	sess  *ssh.Session
	stdin io.WriteCloser
	out   *syncBuffer
	done  chan error
}

func openShell(t *testing.T, c *ssh.Client) *shell {
	t.Helper()
	sess, err := c.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := sess.RequestPty("xterm-256color", 40, 100, ssh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe: %v", err)
	}
	out := &syncBuffer{}
	sess.Stdout = out
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell: %v", err)
	}
	sh := &shell{sess: sess, stdin: stdin, out: out, done: make(chan error, 1)}
	go func() { sh.done <- sess.Wait() }()
	return sh
}

func TestServer_PlayAndQuit(t *testing.T) {
	h := startServer(t, Config{})
	c, err := h.dial(h.player)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	sh := openShell(t, c)
	eventually(t, "alternate screen", func() bool { return strings.Contains(sh.out.String(), "\x1b[?1049h") })
	eventually(t, "board", func() bool { return strings.Contains(sh.out.String(), "BLOCKMOVE") })
	if h.srv.Sessions().Len() != 1 {
		t.Fatalf("expected one live session, got %d", h.srv.Sessions().Len())
	}

	if _, err := sh.stdin.Write([]byte("q")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-sh.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not end after quit")
	}
	if !strings.Contains(sh.out.String(), "\x1b[?1049l") {
		t.Fatalf("terminal was not restored")
	}

	eventually(t, "session record", func() bool { return h.recorder.endedCount() == 1 })
	h.recorder.mu.Lock()
	ended := h.recorder.ended[0]
	h.recorder.mu.Unlock()
	if ended.CloseReason != string(session.ReasonQuit) || ended.Username != "alice" || ended.Fingerprint == "" {
		t.Fatalf("unexpected session record %+v", ended)
	}
	want := []string{model.ActionAuthAccept, model.ActionSessionStart, model.ActionSessionEnd}
	got := h.audit.actions()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("audit actions %v, want %v", got, want)
	}
	eventually(t, "registry cleanup", func() bool { return h.srv.Sessions().Len() == 0 })
}

func TestServer_UnknownKeyRejected(t *testing.T) {
	h := startServer(t, Config{})
	stranger, _ := testutil.NewKey(t, "stranger")
	if _, err := h.dial(stranger); err == nil {
		t.Fatalf("expected handshake failure for unknown key")
	}
	eventually(t, "reject audit", func() bool {
		a := h.audit.actions()
		return len(a) == 1 && a[0] == model.ActionAuthReject
	})
	eventually(t, "registry cleanup", func() bool { return h.srv.Sessions().Len() == 0 })
}

func TestServer_SecondKeyInSameConnectionNotTried(t *testing.T) {
	h := startServer(t, Config{})
	stranger, _ := testutil.NewKey(t, "stranger")
	_, err := ssh.Dial("tcp", h.addr, &ssh.ClientConfig{
		User:            "alice",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(stranger, h.player)},
		HostKeyCallback: ssh.FixedHostKey(h.host.PublicKey()),
		Timeout:         5 * time.Second,
	})
	if err == nil {
		t.Fatalf("a failed first attempt must end the connection")
	}
	eventually(t, "single audit record", func() bool { return len(h.audit.actions()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if a := h.audit.actions(); len(a) != 1 || a[0] != model.ActionAuthReject {
		t.Fatalf("expected exactly one rejected attempt, got %v", a)
	}
}

func TestServer_RefusesExecAndForeignChannels(t *testing.T) {
	h := startServer(t, Config{})
	c, err := h.dial(h.player)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()

	if _, _, err := c.OpenChannel("direct-tcpip", nil); err == nil {
		t.Fatalf("expected forwarding channel to be refused")
	} else {
		var oe *ssh.OpenChannelError
		if !errors.As(err, &oe) || oe.Reason != ssh.UnknownChannelType {
			t.Fatalf("unexpected error %v", err)
		}
	}

	sess, err := c.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := sess.Run("ls"); err == nil {
		t.Fatalf("exec should be refused")
	}
}

func TestServer_SessionLimit(t *testing.T) {
	h := startServer(t, Config{MaxSessions: 1})
	c1, err := h.dial(h.player)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer func() { _ = c1.Close() }()
	if _, err := h.dial(h.player); err == nil {
		t.Fatalf("second connection should be refused at the limit")
	}
}

func TestServer_UnauthenticatedConnectionsDoNotTakeSessionSlots(t *testing.T) {
	h := startServer(t, Config{MaxSessions: 1})
	var idle []net.Conn
	for i := 0; i < 3; i++ {
		nc, err := net.Dial("tcp", h.addr)
		if err != nil {
			t.Fatalf("raw dial: %v", err)
		}
		idle = append(idle, nc)
	}
	defer func() {
		for _, nc := range idle {
			_ = nc.Close()
		}
	}()
	eventually(t, "pending connections registered", func() bool { return h.srv.Sessions().Len() == 3 })

	c, err := h.dial(h.player)
	if err != nil {
		t.Fatalf("player refused while only unauthenticated clients were connected: %v", err)
	}
	defer func() { _ = c.Close() }()
	if got := h.srv.Sessions().Admitted(); got != 1 {
		t.Fatalf("admitted = %d, want 1", got)
	}
}

func TestServer_PendingLimit(t *testing.T) {
	h := startServer(t, Config{MaxPending: 1})
	nc, err := net.Dial("tcp", h.addr)
	if err != nil {
		t.Fatalf("raw dial: %v", err)
	}
	defer func() { _ = nc.Close() }()
	eventually(t, "pending connection registered", func() bool { return h.srv.Sessions().Len() == 1 })

	if _, err := h.dial(h.player); err == nil {
		t.Fatalf("connection beyond the pending budget should be refused")
	}
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	h := startServer(t, Config{})
	c, err := h.dial(h.player)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()
	sh := openShell(t, c)
	eventually(t, "board", func() bool { return strings.Contains(sh.out.String(), "BLOCKMOVE") })

	h.cancel()
	select {
	case err := <-h.served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
		h.served <- nil
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	if len(h.recorder.ended) != 1 || h.recorder.ended[0].CloseReason != string(session.ReasonShutdown) {
		t.Fatalf("expected shutdown record, got %+v", h.recorder.ended)
	}
}
