package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/testutil"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditLogEntry
	err     error
}

func (m *memAudit) LogAction(_ context.Context, e model.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func newStore(t *testing.T, lines ...string) *credstore.Store {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	s, err := credstore.Open(testutil.WriteFile(t, "authorized_keys", content))
	if err != nil {
		t.Fatalf("credstore.Open: %v", err)
	}
	return s
}

func TestAuthenticate_AcceptsKnownKey(t *testing.T) {
	signer, line := testutil.NewKey(t, "alice")
	audit := &memAudit{}
	clk := &fakeClock{now: time.Unix(1000, 0)}
	a := New(newStore(t, line), audit, WithClock(clk))

	d, err := a.Authenticate(context.Background(), Attempt{Wire: signer.PublicKey().Marshal(), User: "alice", Remote: "10.0.0.1:5000"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !d.Accepted || d.Fingerprint == "" || d.Key == nil || d.User != "alice" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if len(clk.waits) != 0 {
		t.Fatalf("accepted attempts must not wait, got %v", clk.waits)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != model.ActionAuthAccept {
		t.Fatalf("expected one accept audit entry, got %+v", audit.entries)
	}
	if audit.entries[0].Actor != d.Fingerprint || audit.entries[0].Remote != "10.0.0.1:5000" {
		t.Fatalf("audit entry lacks identity: %+v", audit.entries[0])
	}
}

func TestAuthenticate_UnknownAndMalformedLookAlike(t *testing.T) {
	_, line := testutil.NewKey(t, "alice")
	stranger, _ := testutil.NewKey(t, "mallory")
	audit := &memAudit{}
	clk := &fakeClock{now: time.Unix(1000, 0)}
	a := New(newStore(t, line), audit, WithClock(clk), WithRejectionDelay(2*time.Second))

	attempts := map[string][]byte{
		"unknown":   stranger.PublicKey().Marshal(),
		"malformed": []byte("\x00\x00\x00\x0bssh-ed25519\x00\x00"),
		"empty":     nil,
	}
	for name, wire := range attempts {
		t.Run(name, func(t *testing.T) {
			clk.waits = nil
			d, err := a.Authenticate(context.Background(), Attempt{Wire: wire, User: "x", Remote: "r"})
			if !errors.Is(err, ErrRejected) || err != ErrRejected {
				t.Fatalf("expected bare ErrRejected, got %v", err)
			}
			if d != (Decision{}) {
				t.Fatalf("rejection must carry no decision data, got %+v", d)
			}
			if len(clk.waits) != 1 || clk.waits[0] != 2*time.Second {
				t.Fatalf("expected a single 2s wait, got %v", clk.waits)
			}
		})
	}

	if len(audit.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(audit.entries))
	}
	invalid := 0
	for _, e := range audit.entries {
		if e.Action != model.ActionAuthReject {
			t.Fatalf("unexpected action %s", e.Action)
		}
		if e.Actor == InvalidIdentity {
			invalid++
		}
	}
	if invalid != 2 {
		t.Fatalf("expected 2 invalid identities, got %d", invalid)
	}
}

func TestAuthenticate_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	signer, line := testutil.NewKey(t, "alice")
	audit := &memAudit{err: errors.New("disk full")}
	a := New(newStore(t, line), audit, WithRejectionDelay(0))
	if _, err := a.Authenticate(context.Background(), Attempt{Wire: signer.PublicKey().Marshal()}); err != nil {
		t.Fatalf("audit failure should not reject: %v", err)
	}
}

func TestAuthenticate_CancelledContextStillRejects(t *testing.T) {
	stranger, _ := testutil.NewKey(t, "mallory")
	a := New(newStore(t), nil, WithRejectionDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := a.Authenticate(ctx, Attempt{Wire: stranger.PublicKey().Marshal()})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancelled attempt should return promptly")
	}
}

func TestAuthenticate_SeesReloadedKeys(t *testing.T) {
	signer, line := testutil.NewKey(t, "late")
	path := testutil.WriteFile(t, "authorized_keys", "")
	store, err := credstore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := New(store, nil, WithRejectionDelay(0))
	wire := signer.PublicKey().Marshal()
	if _, err := a.Authenticate(context.Background(), Attempt{Wire: wire}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection before reload")
	}
	if err := writeFile(path, line+"\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), Attempt{Wire: wire}); err != nil {
		t.Fatalf("expected accept after reload, got %v", err)
	}
}
