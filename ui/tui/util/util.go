// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package util holds small helpers shared by the terminal views.
package util

import (
	"cmp"

	tea "github.com/charmbracelet/bubbletea"
)

// Size tracks the terminal dimensions reported to a program.
type Size struct {
	Width  int
	Height int
}

// Update records msg if it is a window size change and reports whether it was.
func (s *Size) Update(msg tea.Msg) bool {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		s.Width, s.Height = msg.Width, msg.Height
		return true
	}
	return false
}

func Clamp[T cmp.Ordered](lo, wanted, hi T) T {
	return min(max(lo, wanted), hi)
}
