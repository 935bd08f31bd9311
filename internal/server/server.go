// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package server accepts SSH connections, authenticates them with a single
// public-key attempt and runs one game session per connection.
//
// The SSH transport comes from golang.org/x/crypto/ssh. Only "session"
// channels with a shell request are served; exec, subsystems and
// forwarding are refused.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/toeirei/blockmove/internal/assets"
	"github.com/toeirei/blockmove/internal/auth"
	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/logging"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/session"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ServerVersion is sent in the SSH identification string.
const ServerVersion = "SSH-2.0-blockmove"

// Config tunes the listener and the sessions it spawns.
type Config struct {
	Session          session.Config
	MaxSessions      int           // authenticated sessions; 0 means unlimited
	MaxPending       int           // connections still authenticating; 0 means unlimited
	AcceptRate       float64       // new connections per second; 0 means unlimited
	AcceptBurst      int           // defaults to 1
	HandshakeTimeout time.Duration // 0 disables
	WatchSecrets     bool          // reload the credential file on change or SIGHUP
}

// Deps are the collaborators a server needs. Signer and Authenticator are
// required.
type Deps struct {
	Signer        ssh.Signer
	Authenticator session.Authenticator
	Store         *credstore.Store
	Audit         db.AuditWriter
	Recorder      db.SessionRecorder
	Sprites       *assets.Set
	Logger        *clog.Logger
}

// Server runs the SSH game service.
type Server struct {
	cfg     Config
	deps    Deps
	reg     *Registry
	limiter *rate.Limiter
	log     *clog.Logger
	conns   sync.WaitGroup
}

// New validates deps and returns a server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Signer == nil {
		return nil, errors.New("server: host key signer is required")
	}
	if deps.Authenticator == nil {
		return nil, errors.New("server: authenticator is required")
	}
	if deps.Sprites == nil {
		deps.Sprites = assets.LoadSet(nil)
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		reg:  NewRegistry(cfg.MaxSessions, cfg.MaxPending),
		log:  deps.Logger,
	}
	if s.log == nil {
		s.log = logging.With("server")
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	return s, nil
}

// Sessions exposes the live-session registry.
func (s *Server) Sessions() *Registry { return s.reg }

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every live
// session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	s.log.Info("serving", "addr", ln.Addr().String())

	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	if s.cfg.WatchSecrets && s.deps.Store != nil {
		g.Go(func() error {
			err := s.deps.Store.Watch(gctx, s.onReload)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		s.reg.CloseAll(session.ReasonShutdown)
		return nil
	})

	err := g.Wait()
	s.conns.Wait()
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept timeout", "err", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, nc)
		}()
	}
}

func (s *Server) onReload(snap *credstore.Snapshot, err error) {
	entry := model.AuditLogEntry{Actor: "system", Action: model.ActionKeysReload}
	if err != nil {
		entry.Details = "error=" + err.Error()
	} else {
		entry.Details = fmt.Sprintf("keys=%d", snap.Len())
	}
	s.audit(context.Background(), entry)
}

func (s *Server) audit(ctx context.Context, e model.AuditLogEntry) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.LogAction(ctx, e); err != nil {
		s.log.Error("audit write failed", "action", e.Action, "err", err)
	}
}

// serverConfig builds the handshake config for one connection. Its public
// key callback routes the attempt through the connection's loop, so a
// connection gets exactly one authentication decision. An accepted key is
// admitted into the session limit before the handshake completes.
func (s *Server) serverConfig(ctx context.Context, entry *Entry) *ssh.ServerConfig {
	loop := entry.Loop
	conf := &ssh.ServerConfig{
		MaxAuthTries:  1,
		ServerVersion: ServerVersion,
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			d, err := loop.Authenticate(ctx, auth.Attempt{
				Wire:   key.Marshal(),
				User:   meta.User(),
				Remote: meta.RemoteAddr().String(),
			})
			if err != nil {
				return nil, err
			}
			if err := s.reg.Admit(entry.ID); err != nil {
				s.log.Warn("refusing session", "remote", entry.Remote, "fingerprint", d.Fingerprint, "err", err)
				loop.Close(session.ReasonFull)
				return nil, err
			}
			return &ssh.Permissions{Extensions: map[string]string{"fingerprint": d.Fingerprint}}, nil
		},
	}
	conf.AddHostKey(s.deps.Signer)
	return conf
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	remote := nc.RemoteAddr().String()
	log := s.log.With("remote", remote)

	entry, err := s.reg.Add(remote, func(id uuid.UUID) *session.Loop {
		return session.New(id.String(), s.deps.Authenticator, s.cfg.Session)
	})
	if err != nil {
		log.Warn("refusing connection", "err", err)
		_ = nc.Close()
		return
	}
	defer s.reg.Remove(entry.ID)
	loop := entry.Loop
	log = log.With("session", entry.ID.String())

	if err := loop.Accept(); err != nil {
		_ = nc.Close()
		return
	}
	if s.cfg.HandshakeTimeout > 0 {
		_ = nc.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.serverConfig(ctx, entry))
	if err != nil {
		// a rejected key has already closed the loop
		loop.Close(session.ReasonDisconnect)
		log.Debug("handshake failed", "err", err)
		_ = nc.Close()
		return
	}
	_ = nc.SetDeadline(time.Time{})
	defer func() { _ = sconn.Close() }()
	go ssh.DiscardRequests(reqs)

	log.Info("connected", "user", sconn.User(), "fingerprint", sconn.Permissions.Extensions["fingerprint"])
	s.serveChannels(ctx, entry, sconn, chans)
}

// serveChannels accepts the first session channel and plays on it. Any
// other channel is refused. It returns once the client is gone and the
// game has ended.
func (s *Server) serveChannels(ctx context.Context, entry *Entry, sconn *ssh.ServerConn, chans <-chan ssh.NewChannel) {
	loop := entry.Loop
	var play sync.WaitGroup
	started := false
	closed := loop.Done()

	for {
		select {
		case nch, ok := <-chans:
			if !ok {
				loop.Close(session.ReasonDisconnect)
				play.Wait()
				return
			}
			if nch.ChannelType() != "session" {
				_ = nch.Reject(ssh.UnknownChannelType, "only session channels are served")
				continue
			}
			if started {
				_ = nch.Reject(ssh.ResourceShortage, "one game per connection")
				continue
			}
			ch, reqs, err := nch.Accept()
			if err != nil {
				s.log.Warn("channel accept failed", "err", err)
				continue
			}
			started = true
			play.Add(1)
			go func() {
				defer play.Done()
				s.play(ctx, entry, sconn, ch, reqs)
				_ = sconn.Close()
			}()
		case <-closed:
			closed = nil
			if !started {
				_ = sconn.Close()
			}
		}
	}
}
