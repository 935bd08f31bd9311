// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/ssh"
)

// Fallback terminal size when the client asks for no pty.
const (
	defaultCols = 80
	defaultRows = 24
)

// ptyRequest is the payload of a "pty-req" channel request (RFC 4254 6.2).
type ptyRequest struct {
	Term   string
	Cols   uint32
	Rows   uint32
	Width  uint32
	Height uint32
	Modes  string
}

// windowChange is the payload of a "window-change" request (RFC 4254 6.7).
type windowChange struct {
	Cols   uint32
	Rows   uint32
	Width  uint32
	Height uint32
}

// terminal tracks the client's terminal and forwards size changes to the
// program once it runs.
type terminal struct {
	mu   sync.Mutex
	term string
	cols int
	rows int
	prog *tea.Program
}

func newTerminal() *terminal {
	return &terminal{cols: defaultCols, rows: defaultRows}
}

func (t *terminal) setPTY(payload []byte) bool {
	var req ptyRequest
	if err := ssh.Unmarshal(payload, &req); err != nil {
		return false
	}
	t.mu.Lock()
	t.term = req.Term
	t.mu.Unlock()
	t.resize(int(req.Cols), int(req.Rows))
	return true
}

func (t *terminal) windowChange(payload []byte) bool {
	var req windowChange
	if err := ssh.Unmarshal(payload, &req); err != nil {
		return false
	}
	t.resize(int(req.Cols), int(req.Rows))
	return true
}

func (t *terminal) resize(cols, rows int) {
	t.mu.Lock()
	if cols > 0 {
		t.cols = cols
	}
	if rows > 0 {
		t.rows = rows
	}
	p, msg := t.prog, tea.WindowSizeMsg{Width: t.cols, Height: t.rows}
	t.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}

// attach binds the program and pushes the current size to it.
func (t *terminal) attach(p *tea.Program) {
	t.mu.Lock()
	t.prog = p
	msg := tea.WindowSizeMsg{Width: t.cols, Height: t.rows}
	t.mu.Unlock()
	go p.Send(msg)
}

func (t *terminal) Term() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.term
}

func (t *terminal) Size() (cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols, t.rows
}
