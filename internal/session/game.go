// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package session

import (
	"errors"

	"github.com/toeirei/blockmove/internal/board"
	"github.com/toeirei/blockmove/internal/mode"
)

// game is the state owned by a running loop.
type game struct {
	board     *board.Board
	threshold int
	tracker   *mode.Tracker
	last      board.Grid
	seq       uint64
}

func newGame(cfg Config) (*game, error) {
	b, err := board.New(cfg.Board)
	if err != nil {
		return nil, err
	}
	return &game{
		board:     b,
		threshold: cfg.Threshold,
		tracker:   mode.NewTracker(mode.Derive(b, cfg.Threshold)),
	}, nil
}

// step applies cmd and builds the resulting frame.
func (g *game) step(cmd Command) Frame {
	switch cmd {
	case CmdRestart:
		g.board.Restart()
		return g.full(cmd)
	case CmdTick:
		res := g.board.Tick()
		f := g.frame(cmd, false)
		f.Landed = res.Landed
		f.Cleared = res.Cleared
		return f
	}
	var rejected *board.MoveRejected
	if m, ok := cmd.move(); ok {
		if err := g.board.Apply(m); err != nil {
			errors.As(err, &rejected)
		}
	}
	f := g.frame(cmd, false)
	f.Rejected = rejected
	return f
}

// full builds a frame carrying the whole grid.
func (g *game) full(cmd Command) Frame {
	return g.frame(cmd, true)
}

func (g *game) frame(cmd Command, full bool) Frame {
	next := g.board.Snapshot()
	var delta []board.CellChange
	if full {
		delta = board.Grid{}.Diff(next)
	} else {
		delta = g.last.Diff(next)
	}
	g.last = next
	g.seq++

	m := mode.Derive(g.board, g.threshold)
	f := Frame{
		Seq:     g.seq,
		Width:   next.Width,
		Height:  next.Height,
		Full:    full,
		Delta:   delta,
		Mode:    m,
		Command: cmd,
		Stats:   g.board.Stats(),
	}
	if ev, ok := g.tracker.Observe(m); ok {
		f.Event = &ev
	}
	return f
}
