// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package header draws the blockmove banner above the playfield when the
// terminal has room for it.
package header

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/blockmove/ui/tui/util"
)

const logo string = "" +
	"╔╗ ╦  ╔═╗╔═╗╦╔═╔╦╗╔═╗╦  ╦╔═╗\n" +
	"╠╩╗║  ║ ║║  ╠╩╗║║║║ ║╚╗╔╝║╣\n" +
	"╚═╝╩═╝╚═╝╚═╝╩ ╩╩ ╩╚═╝ ╚╝ ╚═╝"

type Model struct {
	size  util.Size
	style lipgloss.Style
}

func New(r *lipgloss.Renderer) *Model {
	return &Model{
		style: r.NewStyle().
			Foreground(lipgloss.Color("#7AA2F7")).
			Border(lipgloss.NormalBorder(), false).
			BorderBottom(true),
	}
}

func (m *Model) Update(msg tea.Msg) bool {
	return m.size.Update(msg)
}

// Height is the number of rows View takes.
func (m Model) Height() int {
	return lipgloss.Height(logo) + 1
}

// Fits reports whether the banner plus body rows fit the terminal.
func (m Model) Fits(body int) bool {
	return m.size.Height >= body+m.Height() && m.size.Width >= lipgloss.Width(logo)
}

func (m Model) View() string {
	return m.style.Render(lipgloss.PlaceHorizontal(
		max(m.size.Width, lipgloss.Width(logo)),
		lipgloss.Center,
		logo,
	))
}
