// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package board

// Kind identifies a piece shape. The zero value marks an empty cell, so a
// grid of Kind doubles as the occupancy map.
type Kind uint8

const (
	Empty Kind = iota
	I
	O
	T
	S
	Z
	J
	L
)

// Kinds lists every playable shape in spawn-table order.
var Kinds = []Kind{I, O, T, S, Z, J, L}

func (k Kind) String() string {
	switch k {
	case I:
		return "I"
	case O:
		return "O"
	case T:
		return "T"
	case S:
		return "S"
	case Z:
		return "Z"
	case J:
		return "J"
	case L:
		return "L"
	default:
		return "."
	}
}

// Point is a cell coordinate. Row 0 is the top of the board.
type Point struct {
	Row, Col int
}

// shape is one piece in its bounding box at rotation 0, with the box size
// used to rotate it.
type shape struct {
	box   int
	cells []Point
}

var shapes = map[Kind]shape{
	I: {box: 4, cells: []Point{{1, 0}, {1, 1}, {1, 2}, {1, 3}}},
	O: {box: 2, cells: []Point{{0, 0}, {0, 1}, {1, 0}, {1, 1}}},
	T: {box: 3, cells: []Point{{0, 1}, {1, 0}, {1, 1}, {1, 2}}},
	S: {box: 3, cells: []Point{{0, 1}, {0, 2}, {1, 0}, {1, 1}}},
	Z: {box: 3, cells: []Point{{0, 0}, {0, 1}, {1, 1}, {1, 2}}},
	J: {box: 3, cells: []Point{{0, 0}, {1, 0}, {1, 1}, {1, 2}}},
	L: {box: 3, cells: []Point{{0, 2}, {1, 0}, {1, 1}, {1, 2}}},
}

// rotations[k][r] holds the box-relative cells of kind k after r clockwise
// quarter turns.
var rotations = buildRotations()

func buildRotations() map[Kind][4][]Point {
	out := make(map[Kind][4][]Point, len(shapes))
	for k, s := range shapes {
		var rs [4][]Point
		cur := s.cells
		for r := 0; r < 4; r++ {
			rs[r] = cur
			next := make([]Point, len(cur))
			for i, p := range cur {
				// clockwise: (r, c) -> (c, n-1-r)
				next[i] = Point{Row: p.Col, Col: s.box - 1 - p.Row}
			}
			cur = next
		}
		out[k] = rs
	}
	return out
}

// Piece is the active block: a shape, its rotation and the board position of
// its bounding box's top-left corner.
type Piece struct {
	Kind   Kind
	Rot    int
	Origin Point
}

// Cells returns the piece's absolute board cells.
func (p Piece) Cells() []Point {
	rel := rotations[p.Kind][p.Rot&3]
	out := make([]Point, len(rel))
	for i, c := range rel {
		out[i] = Point{Row: p.Origin.Row + c.Row, Col: p.Origin.Col + c.Col}
	}
	return out
}

func (p Piece) shifted(dRow, dCol int) Piece {
	p.Origin.Row += dRow
	p.Origin.Col += dCol
	return p
}

func (p Piece) rotated() Piece {
	p.Rot = (p.Rot + 1) & 3
	return p
}

// spawnPiece places k centred on the top row, with its highest cell on row 0.
func spawnPiece(k Kind, width int) Piece {
	s := shapes[k]
	minRow := s.box
	for _, c := range s.cells {
		if c.Row < minRow {
			minRow = c.Row
		}
	}
	return Piece{Kind: k, Origin: Point{Row: -minRow, Col: (width - s.box) / 2}}
}
