// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.
package tui

import (
	"context"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// FPS caps how often a session's screen is redrawn.
const FPS = 30

// NewRenderer returns a lipgloss renderer writing to a remote terminal. The
// colour profile cannot be probed over SSH, so it is chosen from the
// client's TERM value.
func NewRenderer(w io.Writer, term string) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w, termenv.WithUnsafe())
	r.SetColorProfile(ProfileFor(term))
	r.SetHasDarkBackground(true)
	return r
}

// ProfileFor maps a TERM value to a colour profile.
func ProfileFor(term string) termenv.Profile {
	switch {
	case term == "" || term == "dumb":
		return termenv.Ascii
	case term == "xterm-kitty" || term == "alacritty" || term == "wezterm" ||
		strings.HasSuffix(term, "-truecolor") || strings.HasSuffix(term, "-direct"):
		return termenv.TrueColor
	case strings.HasSuffix(term, "256color"):
		return termenv.ANSI256
	default:
		return termenv.ANSI
	}
}

// NewProgram builds the bubbletea program for one remote session. The
// program owns the alternate screen and hides the cursor while it runs.
func NewProgram(ctx context.Context, m tea.Model, in io.Reader, out io.Writer) *tea.Program {
	return tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
		tea.WithFPS(FPS),
	)
}
