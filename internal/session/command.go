// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package session

import (
	"fmt"

	"github.com/toeirei/blockmove/internal/board"
)

// Command is one message for a session's lane.
type Command int

const (
	CmdLeft Command = iota + 1
	CmdRight
	CmdDown
	CmdRotate
	CmdRestart
	CmdTick
	CmdQuit
)

var commandNames = map[Command]string{
	CmdLeft:    "left",
	CmdRight:   "right",
	CmdDown:    "down",
	CmdRotate:  "rotate",
	CmdRestart: "restart",
	CmdTick:    "tick",
	CmdQuit:    "quit",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// move returns the board move for c, if c is one.
func (c Command) move() (board.Move, bool) {
	switch c {
	case CmdLeft:
		return board.Left, true
	case CmdRight:
		return board.Right, true
	case CmdDown:
		return board.Down, true
	case CmdRotate:
		return board.Rotate, true
	}
	return 0, false
}
