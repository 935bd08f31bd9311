// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package auth decides whether a presented public key may open a game
// session.
//
// Every attempt, well-formed or not, walks the same path: parse, set lookup,
// audit, and for rejections a wait until a fixed deadline measured from the
// start of the attempt. Callers only ever see ErrRejected, so a malformed
// key cannot be told apart from an unknown one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/logging"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// DefaultRejectionDelay is how long a rejected attempt takes.
const DefaultRejectionDelay = 3 * time.Second

// InvalidIdentity is recorded as the actor for keys that do not parse.
const InvalidIdentity = "invalid"

// ErrRejected is the only error a failed attempt produces.
var ErrRejected = errors.New("authentication rejected")

// KeySet is the lookup the authenticator needs from the credential store.
type KeySet interface {
	ContainsWire(wire []byte) bool
}

// Attempt is one presented key.
type Attempt struct {
	Wire   []byte // SSH wire encoding of the public key
	User   string
	Remote string
}

// Decision is the outcome of an accepted attempt.
type Decision struct {
	Accepted    bool
	Fingerprint string
	Key         ssh.PublicKey
	User        string
	Remote      string
	At          time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithRejectionDelay overrides DefaultRejectionDelay. Zero disables the wait.
func WithRejectionDelay(d time.Duration) Option {
	return func(a *Authenticator) { a.delay = d }
}

// WithClock swaps the time source.
func WithClock(c Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

// WithLogger sets the logger used for audit write failures.
func WithLogger(l *clog.Logger) Option {
	return func(a *Authenticator) { a.log = l }
}

// Authenticator checks keys against a KeySet. It is safe for concurrent use.
type Authenticator struct {
	keys  KeySet
	audit db.AuditWriter
	delay time.Duration
	clock Clock
	log   *clog.Logger
}

// New returns an Authenticator. audit may be nil.
func New(keys KeySet, audit db.AuditWriter, opts ...Option) *Authenticator {
	a := &Authenticator{
		keys:  keys,
		audit: audit,
		delay: DefaultRejectionDelay,
		clock: systemClock{},
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = logging.With("auth")
	}
	return a
}

// Authenticate admits the attempt iff its key is in the key set. On any
// other outcome it waits out the rejection delay and returns ErrRejected.
// A cancelled context cuts the wait short but still rejects.
func (a *Authenticator) Authenticate(ctx context.Context, at Attempt) (Decision, error) {
	start := a.clock.Now()
	deadline := start.Add(a.delay)

	identity := InvalidIdentity
	key, perr := ssh.ParsePublicKey(at.Wire)
	if perr == nil {
		identity = sshkey.FingerprintWire(at.Wire)
	}
	found := a.keys.ContainsWire(at.Wire)
	accepted := perr == nil && found

	a.record(ctx, identity, at, accepted, perr)

	if accepted {
		return Decision{
			Accepted:    true,
			Fingerprint: identity,
			Key:         key,
			User:        at.User,
			Remote:      at.Remote,
			At:          start,
		}, nil
	}

	if wait := deadline.Sub(a.clock.Now()); wait > 0 {
		select {
		case <-a.clock.After(wait):
		case <-ctx.Done():
		}
	}
	return Decision{}, ErrRejected
}

func (a *Authenticator) record(ctx context.Context, identity string, at Attempt, accepted bool, perr error) {
	action := model.ActionAuthReject
	details := "user=" + at.User
	if accepted {
		action = model.ActionAuthAccept
	} else if perr != nil {
		details += " reason=malformed"
	} else {
		details += " reason=unknown"
	}
	if accepted {
		a.log.Info("accepted", "fingerprint", identity, "user", at.User, "remote", at.Remote)
	} else {
		a.log.Warn("rejected", "identity", identity, "user", at.User, "remote", at.Remote)
	}
	if a.audit == nil {
		return
	}
	err := a.audit.LogAction(ctx, model.AuditLogEntry{
		Timestamp: a.clock.Now(),
		Actor:     identity,
		Remote:    at.Remote,
		Action:    action,
		Details:   details,
	})
	if err != nil {
		a.log.Error("audit write failed", "err", fmt.Errorf("%s: %w", action, err))
	}
}
