// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package board

import "strings"

// Grid is a rendered copy of the board: landed cells with the active piece
// drawn on top. It never aliases the board's own storage.
type Grid struct {
	Width  int
	Height int
	Cells  []Kind
}

// At returns the cell at row, col.
func (g Grid) At(row, col int) Kind {
	return g.Cells[row*g.Width+col]
}

// Set writes k at row, col.
func (g Grid) Set(row, col int, k Kind) {
	g.Cells[row*g.Width+col] = k
}

// CellChange is one cell that differs between two grids.
type CellChange struct {
	Row  int
	Col  int
	Kind Kind
}

// Diff lists the cells of next that differ from g. Grids of different size
// yield every cell of next.
func (g Grid) Diff(next Grid) []CellChange {
	var out []CellChange
	same := g.Width == next.Width && g.Height == next.Height && len(g.Cells) == len(next.Cells)
	for i, k := range next.Cells {
		if same && g.Cells[i] == k {
			continue
		}
		out = append(out, CellChange{Row: i / next.Width, Col: i % next.Width, Kind: k})
	}
	return out
}

// Apply writes changes into g in place.
func (g Grid) Apply(changes []CellChange) {
	for _, c := range changes {
		if c.Row >= 0 && c.Row < g.Height && c.Col >= 0 && c.Col < g.Width {
			g.Set(c.Row, c.Col, c.Kind)
		}
	}
}

// String draws the grid with one character per cell.
func (g Grid) String() string {
	var sb strings.Builder
	for r := 0; r < g.Height; r++ {
		for c := 0; c < g.Width; c++ {
			sb.WriteString(g.At(r, c).String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// NewGrid returns an empty grid.
func NewGrid(width, height int) Grid {
	return Grid{Width: width, Height: height, Cells: make([]Kind, width*height)}
}

// Snapshot renders the board into a fresh Grid.
func (b *Board) Snapshot() Grid {
	g := Grid{Width: b.width, Height: b.height, Cells: append([]Kind(nil), b.cells...)}
	if p, ok := b.Active(); ok {
		for _, c := range p.Cells() {
			g.Set(c.Row, c.Col, p.Kind)
		}
	}
	return g
}
