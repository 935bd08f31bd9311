// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package board implements the falling-block playfield: the grid of landed
// cells, the active piece, gravity, line clears and the game-over check.
//
// A Board is not safe for concurrent use. The session package owns each
// board from a single goroutine.
package board

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Default playfield size.
const (
	DefaultWidth  = 10
	DefaultHeight = 20
)

// Move is a player command applied to the active piece.
type Move int

const (
	Left Move = iota
	Right
	Down
	Rotate
)

func (m Move) String() string {
	switch m {
	case Left:
		return "left"
	case Right:
		return "right"
	case Down:
		return "down"
	case Rotate:
		return "rotate"
	default:
		return fmt.Sprintf("move(%d)", int(m))
	}
}

// State is the engine's coarse state. Landed is transient and only ever
// reported through TickResult.
type State int

const (
	Active State = iota
	Landed
	GameOver
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Landed:
		return "landed"
	case GameOver:
		return "game_over"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason says why a move was refused.
type Reason int

const (
	OutOfBounds Reason = iota + 1
	Collision
	Ended
)

func (r Reason) String() string {
	switch r {
	case OutOfBounds:
		return "out_of_bounds"
	case Collision:
		return "collision"
	case Ended:
		return "game_over"
	default:
		return "unknown"
	}
}

// ErrMoveRejected is matched by every *MoveRejected via errors.Is.
var ErrMoveRejected = errors.New("move rejected")

// MoveRejected is returned by Apply when the board refused a move. The board
// is unchanged whenever this is returned.
type MoveRejected struct {
	Move   Move
	Reason Reason
}

func (e *MoveRejected) Error() string {
	return fmt.Sprintf("move %s rejected: %s", e.Move, e.Reason)
}

// Is reports ErrMoveRejected as a match.
func (e *MoveRejected) Is(target error) bool { return target == ErrMoveRejected }

// Stats counts what happened on the board since the last (re)start.
type Stats struct {
	PiecesLanded int
	LinesCleared int
}

// TickResult reports what one gravity step did.
type TickResult struct {
	Moved    bool // the active piece dropped one row
	Landed   bool // the active piece locked into the grid
	Cleared  int  // rows cleared by the landing
	GameOver bool // the next piece could not spawn (or the board was already over)
}

// Config sizes a board and picks its piece source.
type Config struct {
	Width  int
	Height int
	Source Source
}

// Board is the playfield.
type Board struct {
	width  int
	height int
	cells  []Kind // row-major, row 0 at the top
	active Piece
	state  State
	src    Source
	stats  Stats
}

// New returns a board with an empty grid and a freshly spawned piece.
// Zero sizes fall back to the defaults; a nil source deals random bags.
func New(cfg Config) (*Board, error) {
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Width < 4 || cfg.Height < 4 {
		return nil, fmt.Errorf("board %dx%d too small: need at least 4x4", cfg.Width, cfg.Height)
	}
	if cfg.Source == nil {
		cfg.Source = NewBagSource(rand.Uint64())
	}
	b := &Board{
		width:  cfg.Width,
		height: cfg.Height,
		cells:  make([]Kind, cfg.Width*cfg.Height),
		src:    cfg.Source,
	}
	b.spawn()
	return b, nil
}

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// State returns Active or GameOver.
func (b *Board) State() State { return b.state }

// GameOver reports whether the board has ended.
func (b *Board) GameOver() bool { return b.state == GameOver }

// Stats returns the landing and clearing counters.
func (b *Board) Stats() Stats { return b.stats }

// Active returns the active piece. ok is false once the game is over.
func (b *Board) Active() (p Piece, ok bool) {
	if b.state == GameOver {
		return Piece{}, false
	}
	return b.active, true
}

// At returns the landed content of a cell; out-of-range cells read Empty.
func (b *Board) At(row, col int) Kind {
	if !b.inBounds(Point{row, col}) {
		return Empty
	}
	return b.cells[row*b.width+col]
}

// TopLandedRow returns the index of the highest row holding a landed cell,
// or -1 when the grid is empty. The active piece is not counted.
func (b *Board) TopLandedRow() int {
	for i, k := range b.cells {
		if k != Empty {
			return i / b.width
		}
	}
	return -1
}

// Apply moves the active piece one step. It returns a *MoveRejected and
// leaves the board untouched if the move would leave the grid, overlap a
// landed cell, or the game is over.
func (b *Board) Apply(m Move) error {
	if b.state == GameOver {
		return &MoveRejected{Move: m, Reason: Ended}
	}
	var cand Piece
	switch m {
	case Left:
		cand = b.active.shifted(0, -1)
	case Right:
		cand = b.active.shifted(0, 1)
	case Down:
		cand = b.active.shifted(1, 0)
	case Rotate:
		return b.rotate()
	default:
		return fmt.Errorf("unknown move %d", int(m))
	}
	if reason := b.check(cand); reason != 0 {
		return &MoveRejected{Move: m, Reason: reason}
	}
	b.active = cand
	return nil
}

// kickOffset is the horizontal nudge tried when a rotation collides.
const kickOffset = 1

// rotate turns the active piece clockwise. If the plain rotation does not
// fit it tries shifting by kickOffset away from the nearer wall, then
// towards it.
func (b *Board) rotate() error {
	cand := b.active.rotated()
	reason := b.check(cand)
	if reason == 0 {
		b.active = cand
		return nil
	}
	for _, dx := range b.kickOrder() {
		kicked := cand.shifted(0, dx)
		if b.check(kicked) == 0 {
			b.active = kicked
			return nil
		}
	}
	return &MoveRejected{Move: Rotate, Reason: reason}
}

func (b *Board) kickOrder() [2]int {
	box := shapes[b.active.Kind].box
	centre2 := 2*b.active.Origin.Col + box // twice the piece's centre column
	if centre2 < b.width {
		return [2]int{kickOffset, -kickOffset}
	}
	return [2]int{-kickOffset, kickOffset}
}

// Tick advances gravity by one row. When the piece cannot fall it lands,
// full rows are cleared and the next piece spawns.
func (b *Board) Tick() TickResult {
	if b.state == GameOver {
		return TickResult{GameOver: true}
	}
	down := b.active.shifted(1, 0)
	if b.check(down) == 0 {
		b.active = down
		return TickResult{Moved: true}
	}

	for _, c := range b.active.Cells() {
		b.cells[c.Row*b.width+c.Col] = b.active.Kind
	}
	b.stats.PiecesLanded++
	cleared := b.clearRows()
	b.stats.LinesCleared += cleared
	b.spawn()
	return TickResult{Landed: true, Cleared: cleared, GameOver: b.state == GameOver}
}

// Restart empties the grid, resets the counters and spawns a new piece.
func (b *Board) Restart() {
	for i := range b.cells {
		b.cells[i] = Empty
	}
	b.stats = Stats{}
	b.state = Active
	b.spawn()
}

// spawn deals the next piece. If its cells are already taken the board
// moves to GameOver.
func (b *Board) spawn() {
	p := spawnPiece(b.src.Next(), b.width)
	if b.check(p) != 0 {
		b.state = GameOver
		b.active = p
		return
	}
	b.active = p
	b.state = Active
}

// clearRows removes full rows and shifts everything above them down by the
// number removed. It returns that number.
func (b *Board) clearRows() int {
	w := b.width
	dst := b.height - 1
	for src := b.height - 1; src >= 0; src-- {
		if b.rowFull(src) {
			continue
		}
		if dst != src {
			copy(b.cells[dst*w:(dst+1)*w], b.cells[src*w:(src+1)*w])
		}
		dst--
	}
	cleared := dst + 1
	for r := 0; r <= dst; r++ {
		for c := 0; c < w; c++ {
			b.cells[r*w+c] = Empty
		}
	}
	return cleared
}

func (b *Board) rowFull(row int) bool {
	for c := 0; c < b.width; c++ {
		if b.cells[row*b.width+c] == Empty {
			return false
		}
	}
	return true
}

func (b *Board) inBounds(p Point) bool {
	return p.Row >= 0 && p.Row < b.height && p.Col >= 0 && p.Col < b.width
}

// check returns 0 when p fits, otherwise why it does not. Bounds win over
// collisions so a piece poking through a wall reports OutOfBounds.
func (b *Board) check(p Piece) Reason {
	var reason Reason
	for _, c := range p.Cells() {
		if !b.inBounds(c) {
			return OutOfBounds
		}
		if b.cells[c.Row*b.width+c.Col] != Empty {
			reason = Collision
		}
	}
	return reason
}

// Clone returns an independent copy sharing only the piece source.
func (b *Board) Clone() *Board {
	c := *b
	c.cells = append([]Kind(nil), b.cells...)
	return &c
}
