// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package session runs one player's connection: a single authentication
// attempt, then a game loop that owns the board exclusively.
//
// All board mutations happen on the goroutine executing Run. Player input,
// gravity and the idle timer are serialized through one select loop, so
// the board needs no locking.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/blockmove/internal/auth"
	"github.com/toeirei/blockmove/internal/board"
	"github.com/toeirei/blockmove/internal/logging"
)

// State is the connection lifecycle stage.
type State int

const (
	Connecting State = iota
	Authenticating
	Playing
	Closing
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Playing:
		return "playing"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason records why a session closed.
type Reason string

const (
	ReasonDisconnect   Reason = "disconnect"
	ReasonQuit         Reason = "quit"
	ReasonIdle         Reason = "idle"
	ReasonTransport    Reason = "transport"
	ReasonAuthRejected Reason = "auth_rejected"
	ReasonShutdown     Reason = "shutdown"
	ReasonFull         Reason = "server_full"
)

var (
	// ErrClosed is returned when talking to a session that has closed.
	ErrClosed = errors.New("session closed")
	// ErrWrongState is returned when an operation does not fit the
	// session's lifecycle stage.
	ErrWrongState = errors.New("session in wrong state")
)

// Authenticator is the check consulted once per session.
type Authenticator interface {
	Authenticate(ctx context.Context, at auth.Attempt) (auth.Decision, error)
}

// Config tunes a session.
type Config struct {
	Board        board.Config
	Threshold    int           // hazard band rows; 0 picks mode.DefaultThreshold
	TickInterval time.Duration // gravity period; 0 disables automatic ticks
	IdleTimeout  time.Duration // close after this long without input; 0 disables
	InboxSize    int
}

// Summary is what Run reports when the session ends.
type Summary struct {
	Reason Reason
	Stats  board.Stats
	Frames uint64
}

// Loop is one connection's state machine.
type Loop struct {
	id    string
	cfg   Config
	authn Authenticator
	log   *clog.Logger

	mu       sync.Mutex
	state    State
	identity *auth.Decision
	tried    bool
	reason   Reason
	hooks    []func(Reason)
	running  bool

	inbox     chan Command
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a loop in the Connecting state.
func New(id string, authn Authenticator, cfg Config) *Loop {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	return &Loop{
		id:    id,
		cfg:   cfg,
		authn: authn,
		log:   logging.With("session").With("id", id),
		inbox: make(chan Command, cfg.InboxSize),
		done:  make(chan struct{}),
	}
}

// ID returns the session identifier.
func (l *Loop) ID() string { return l.id }

// State returns the current lifecycle stage.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Identity returns the accepted authentication decision, or nil before
// authentication succeeded.
func (l *Loop) Identity() *auth.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identity
}

// Reason returns why the session closed, or "" while it is open.
func (l *Loop) Reason() Reason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

// Done is closed once the session reaches Closing.
func (l *Loop) Done() <-chan struct{} { return l.done }

// OnClose registers fn to run when the session closes. Hooks run once, in
// registration order. Registering after close runs fn immediately.
func (l *Loop) OnClose(fn func(Reason)) {
	l.mu.Lock()
	if l.state == Closing {
		r := l.reason
		l.mu.Unlock()
		fn(r)
		return
	}
	l.hooks = append(l.hooks, fn)
	l.mu.Unlock()
}

// Accept marks the transport as connected.
func (l *Loop) Accept() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Connecting {
		return fmt.Errorf("accept in %s: %w", l.state, ErrWrongState)
	}
	l.state = Authenticating
	return nil
}

// Authenticate consults the authenticator for the session's one attempt.
// Any further attempt, or one made outside Authenticating, is rejected
// without consulting it. A rejection closes the session.
func (l *Loop) Authenticate(ctx context.Context, at auth.Attempt) (auth.Decision, error) {
	l.mu.Lock()
	if l.state != Authenticating || l.tried {
		l.mu.Unlock()
		return auth.Decision{}, auth.ErrRejected
	}
	l.tried = true
	l.mu.Unlock()

	d, err := l.authn.Authenticate(ctx, at)
	if err != nil {
		l.Close(ReasonAuthRejected)
		return auth.Decision{}, auth.ErrRejected
	}

	l.mu.Lock()
	if l.reason != "" {
		l.mu.Unlock()
		return auth.Decision{}, ErrClosed
	}
	l.identity = &d
	l.state = Playing
	l.mu.Unlock()
	l.log.Debug("authenticated", "fingerprint", d.Fingerprint)
	return d, nil
}

// Send queues a command for the game loop. It blocks while the inbox is
// full and fails with ErrClosed once the session has closed.
func (l *Loop) Send(cmd Command) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- cmd:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Close moves the session to Closing and runs the close hooks. Only the
// first call has an effect.
func (l *Loop) Close(reason Reason) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.state = Closing
		l.reason = reason
		hooks := l.hooks
		l.hooks = nil
		l.mu.Unlock()

		close(l.done)
		l.log.Debug("closed", "reason", reason)
		for _, h := range hooks {
			h(reason)
		}
	})
}

// Run plays the game until the session closes, sending a frame to sink for
// every command and gravity step. It must be called once, after a
// successful Authenticate. The returned error is a *TransportError when the
// sink failed.
func (l *Loop) Run(ctx context.Context, sink Sink) (Summary, error) {
	l.mu.Lock()
	if l.state != Playing || l.running {
		st := l.state
		l.mu.Unlock()
		return Summary{}, fmt.Errorf("run in %s: %w", st, ErrWrongState)
	}
	l.running = true
	l.mu.Unlock()

	g, err := newGame(l.cfg)
	if err != nil {
		l.Close(ReasonShutdown)
		return Summary{Reason: ReasonShutdown}, err
	}

	var runErr error
	reason := l.loop(ctx, g, sink, &runErr)
	l.Close(reason)
	return Summary{Reason: l.Reason(), Stats: g.board.Stats(), Frames: g.seq}, runErr
}

func (l *Loop) loop(ctx context.Context, g *game, sink Sink, runErr *error) Reason {
	emit := func(f Frame) bool {
		if err := sink.Emit(f); err != nil {
			*runErr = &TransportError{Op: "emit", Err: err}
			l.log.Warn("sink failed", "err", err)
			return false
		}
		return true
	}

	if !emit(g.full(0)) {
		return ReasonTransport
	}

	var tickC <-chan time.Time
	if l.cfg.TickInterval > 0 {
		t := time.NewTicker(l.cfg.TickInterval)
		defer t.Stop()
		tickC = t.C
	}
	var idle *time.Timer
	var idleC <-chan time.Time
	if l.cfg.IdleTimeout > 0 {
		idle = time.NewTimer(l.cfg.IdleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-ctx.Done():
			return ReasonDisconnect
		case <-l.done:
			return l.Reason()
		case <-idleC:
			l.log.Info("idle timeout")
			return ReasonIdle
		case <-tickC:
			if !emit(g.step(CmdTick)) {
				return ReasonTransport
			}
		case cmd := <-l.inbox:
			if idle != nil {
				idle.Reset(l.cfg.IdleTimeout)
			}
			if cmd == CmdQuit {
				return ReasonQuit
			}
			if !emit(g.step(cmd)) {
				return ReasonTransport
			}
		}
	}
}
