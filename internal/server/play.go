// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"context"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/blockmove/internal/model"
	"github.com/toeirei/blockmove/internal/mode"
	"github.com/toeirei/blockmove/internal/session"
	"github.com/toeirei/blockmove/ui/tui"
	"github.com/toeirei/blockmove/ui/tui/models/views/game"
	"golang.org/x/crypto/ssh"
)

// programExitGrace bounds how long the front-end gets to restore the
// client's terminal after the session closed.
const programExitGrace = 2 * time.Second

// programSink feeds frames into a running bubbletea program.
type programSink struct {
	p    *tea.Program
	done <-chan struct{}
}

func (s programSink) Emit(f session.Frame) error {
	select {
	case <-s.done:
		return io.ErrClosedPipe
	default:
	}
	s.p.Send(game.FrameMsg(f))
	return nil
}

// auditSink records game-over transitions before passing frames on.
type auditSink struct {
	next   session.Sink
	server *Server
	entry  *Entry
	actor  string
}

func (s auditSink) Emit(f session.Frame) error {
	if f.Event != nil && f.Event.To == mode.GameOver {
		s.server.audit(context.Background(), model.AuditLogEntry{
			Actor:   s.actor,
			Remote:  s.entry.Remote,
			Action:  model.ActionGameOver,
			Details: "session=" + s.entry.ID.String(),
		})
	}
	return s.next.Emit(f)
}

// handleRequests answers channel requests until reqs closes. shell is
// closed on the first shell request.
func handleRequests(reqs <-chan *ssh.Request, term *terminal, shell chan<- struct{}) {
	var once sync.Once
	for req := range reqs {
		ok := false
		switch req.Type {
		case "pty-req":
			ok = term.setPTY(req.Payload)
		case "window-change":
			ok = term.windowChange(req.Payload)
		case "env":
			ok = true
		case "shell":
			ok = true
			once.Do(func() { close(shell) })
		}
		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}
}

// play runs the game on ch until the session closes.
func (s *Server) play(ctx context.Context, entry *Entry, sconn *ssh.ServerConn, ch ssh.Channel, reqs <-chan *ssh.Request) {
	loop := entry.Loop
	log := s.log.With("session", entry.ID.String())
	defer func() { _ = ch.Close() }()

	term := newTerminal()
	shell := make(chan struct{})
	go handleRequests(reqs, term, shell)

	var idle <-chan time.Time
	if d := s.cfg.Session.IdleTimeout; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		idle = t.C
	}
	select {
	case <-shell:
	case <-loop.Done():
		return
	case <-idle:
		loop.Close(session.ReasonIdle)
		return
	}

	ident := loop.Identity()
	fingerprint := ""
	if ident != nil {
		fingerprint = ident.Fingerprint
	}
	rec := model.GameSession{
		ID:          entry.ID.String(),
		Fingerprint: fingerprint,
		Username:    sconn.User(),
		Remote:      entry.Remote,
		StartedAt:   time.Now().UTC(),
	}
	s.recordStart(rec)

	runCtx := context.WithoutCancel(ctx)
	pctx, cancel := context.WithCancel(runCtx)
	defer cancel()

	renderer := tui.NewRenderer(ch, term.Term())
	view := game.New(loop,
		game.WithRenderer(renderer),
		game.WithSprites(s.deps.Sprites),
		game.WithUser(sconn.User()),
	)
	prog := tui.NewProgram(pctx, view, ch, ch)
	progDone := make(chan struct{})
	go func() {
		defer close(progDone)
		if _, err := prog.Run(); err != nil && pctx.Err() == nil {
			log.Debug("front-end stopped", "err", err)
		}
		// the client's terminal is gone or the player left
		loop.Close(session.ReasonDisconnect)
	}()
	term.attach(prog)

	sink := auditSink{next: programSink{p: prog, done: progDone}, server: s, entry: entry, actor: fingerprint}
	sum, err := loop.Run(runCtx, sink)
	if err != nil {
		log.Warn("session ended with error", "err", err)
	}

	go prog.Send(game.ClosedMsg{Reason: sum.Reason})
	select {
	case <-progDone:
	case <-time.After(programExitGrace):
		prog.Kill()
		<-progDone
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))

	rec.EndedAt = time.Now().UTC()
	rec.CloseReason = string(sum.Reason)
	rec.PiecesLanded = sum.Stats.PiecesLanded
	rec.LinesCleared = sum.Stats.LinesCleared
	s.recordEnd(rec)
	log.Info("session closed", "reason", sum.Reason, "pieces", sum.Stats.PiecesLanded, "lines", sum.Stats.LinesCleared)
}

func (s *Server) recordStart(rec model.GameSession) {
	ctx := context.Background()
	s.audit(ctx, model.AuditLogEntry{
		Actor:   rec.Fingerprint,
		Remote:  rec.Remote,
		Action:  model.ActionSessionStart,
		Details: "session=" + rec.ID + " user=" + rec.Username,
	})
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.StartSession(ctx, rec); err != nil {
		s.log.Error("record session start", "err", err)
	}
}

func (s *Server) recordEnd(rec model.GameSession) {
	ctx := context.Background()
	s.audit(ctx, model.AuditLogEntry{
		Actor:   rec.Fingerprint,
		Remote:  rec.Remote,
		Action:  model.ActionSessionEnd,
		Details: "session=" + rec.ID + " reason=" + rec.CloseReason,
	})
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.EndSession(ctx, rec); err != nil {
		s.log.Error("record session end", "err", err)
	}
}
