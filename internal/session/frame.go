// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/toeirei/blockmove/internal/board"
	"github.com/toeirei/blockmove/internal/mode"
)

// Frame is what a session emits after each command: the cells that changed
// since the previous frame plus the current mode.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Full   bool // Delta covers every cell; the receiver should start over
	Delta  []board.CellChange

	Mode  mode.Mode
	Event *mode.Event // set only on the frame where the mode changed

	Command  Command
	Rejected *board.MoveRejected
	Landed   bool
	Cleared  int
	Stats    board.Stats
}

// Tag is the wire name of the frame's mode.
func (f Frame) Tag() string { return f.Mode.String() }

// Sink receives frames from a running session.
type Sink interface {
	Emit(Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame) error

// Emit calls f.
func (f SinkFunc) Emit(fr Frame) error { return f(fr) }

// TransportError is an I/O failure on the session's connection. It ends
// that session only.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
