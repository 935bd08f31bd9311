// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.
package game

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/session"
)

type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Down    key.Binding
	Rotate  key.Binding
	Restart key.Binding
	Quit    key.Binding
	Help    key.Binding
}

func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Left, km.Right, km.Rotate, km.Down, km.Restart, km.Quit}
}

func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{km.Left, km.Right, km.Down}, {km.Rotate, km.Restart}, {km.Help, km.Quit}}
}

// *KeyMap implements help.KeyMap
var _ help.KeyMap = (*KeyMap)(nil)

// DefaultKeyMap builds the bindings with labels in the active language.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h", "a"),
			key.WithHelp("←/h", i18n.T("game.help.left")),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l", "d"),
			key.WithHelp("→/l", i18n.T("game.help.right")),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "s"),
			key.WithHelp("↓/j", i18n.T("game.help.down")),
		),
		Rotate: key.NewBinding(
			key.WithKeys("up", "k", "w", " "),
			key.WithHelp("↑/space", i18n.T("game.help.rotate")),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", i18n.T("game.help.restart")),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", i18n.T("game.help.quit")),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", i18n.T("game.help.help")),
		),
	}
}

// commandFor maps a key press to the session command it triggers.
func (km KeyMap) commandFor(msg tea.KeyMsg) (session.Command, bool) {
	switch {
	case key.Matches(msg, km.Left):
		return session.CmdLeft, true
	case key.Matches(msg, km.Right):
		return session.CmdRight, true
	case key.Matches(msg, km.Down):
		return session.CmdDown, true
	case key.Matches(msg, km.Rotate):
		return session.CmdRotate, true
	case key.Matches(msg, km.Restart):
		return session.CmdRestart, true
	case key.Matches(msg, km.Quit):
		return session.CmdQuit, true
	}
	return 0, false
}
