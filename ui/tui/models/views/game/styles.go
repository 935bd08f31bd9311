// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.
package game

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/blockmove/internal/board"
)

const (
	colorSubtle    = lipgloss.Color("240")
	colorHighlight = lipgloss.Color("81")
	colorSpecial   = lipgloss.Color("208")
	colorError     = lipgloss.Color("196")
)

var pieceColors = map[board.Kind]lipgloss.Color{
	board.I: lipgloss.Color("51"),
	board.O: lipgloss.Color("226"),
	board.T: lipgloss.Color("129"),
	board.S: lipgloss.Color("46"),
	board.Z: lipgloss.Color("196"),
	board.J: lipgloss.Color("21"),
	board.L: lipgloss.Color("208"),
}

// styles are bound to one renderer so colours follow the client terminal.
type styles struct {
	cells   map[board.Kind]lipgloss.Style
	empty   lipgloss.Style
	well    lipgloss.Style
	title   lipgloss.Style
	normal  lipgloss.Style
	scared  lipgloss.Style
	over    lipgloss.Style
	status  lipgloss.Style
	help    lipgloss.Style
	sidebar lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	s := styles{
		cells: make(map[board.Kind]lipgloss.Style, len(pieceColors)),
		empty: r.NewStyle().Foreground(colorSubtle),
		well: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle),
		title:   r.NewStyle().Foreground(colorHighlight).Bold(true),
		normal:  r.NewStyle().Foreground(colorHighlight),
		scared:  r.NewStyle().Foreground(colorSpecial).Bold(true),
		over:    r.NewStyle().Foreground(colorError).Bold(true).Blink(true),
		status:  r.NewStyle().Foreground(colorError),
		help:    r.NewStyle().Foreground(colorSubtle),
		sidebar: r.NewStyle().PaddingLeft(2),
	}
	for k, c := range pieceColors {
		s.cells[k] = r.NewStyle().Foreground(c)
	}
	return s
}
