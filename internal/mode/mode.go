// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package mode derives the presentation mode of a game from its board.
// The mode is never stored alongside the board; it is recomputed from the
// board each time it is needed.
package mode

import "fmt"

// Mode selects how the game is presented.
type Mode int

const (
	Normal Mode = iota
	Scared
	GameOver
)

// String returns the wire tag of the mode.
func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Scared:
		return "scared"
	case GameOver:
		return "game_over"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Asset names the picture shown for the mode. A finished game keeps the
// scared picture.
func (m Mode) Asset() string {
	if m == Normal {
		return "normal"
	}
	return "scared"
}

// View is the part of a board the mode depends on.
type View interface {
	Height() int
	TopLandedRow() int
	GameOver() bool
}

// DefaultThreshold is the hazard band for a board of the given height:
// the top fifth, at least one row.
func DefaultThreshold(height int) int {
	if t := height / 5; t > 0 {
		return t
	}
	return 1
}

// Derive returns the mode for v. threshold is the number of rows at the top
// of the board that count as the hazard band; zero or less picks
// DefaultThreshold. Only landed cells are considered.
func Derive(v View, threshold int) Mode {
	if v.GameOver() {
		return GameOver
	}
	if threshold <= 0 {
		threshold = DefaultThreshold(v.Height())
	}
	if top := v.TopLandedRow(); top >= 0 && top < threshold {
		return Scared
	}
	return Normal
}

// Event is one mode transition.
type Event struct {
	From Mode
	To   Mode
}

func (e Event) String() string { return e.From.String() + "->" + e.To.String() }

// Tracker turns a stream of derived modes into transition events. It
// remembers only the last mode it reported. The zero value starts in Normal.
type Tracker struct {
	last Mode
}

// NewTracker returns a tracker whose baseline is initial.
func NewTracker(initial Mode) *Tracker { return &Tracker{last: initial} }

// Current returns the last reported mode.
func (t *Tracker) Current() Mode { return t.last }

// Observe records m and returns an event when it differs from the last
// reported mode.
func (t *Tracker) Observe(m Mode) (Event, bool) {
	if m == t.last {
		return Event{}, false
	}
	ev := Event{From: t.last, To: m}
	t.last = m
	return ev, true
}

// Reset sets the baseline without reporting a transition.
func (t *Tracker) Reset(m Mode) { t.last = m }
