package tui

import (
	"testing"

	"github.com/muesli/termenv"
)

func TestProfileFor(t *testing.T) {
	cases := map[string]termenv.Profile{
		"":                termenv.Ascii,
		"dumb":            termenv.Ascii,
		"xterm":           termenv.ANSI,
		"xterm-256color":  termenv.ANSI256,
		"screen-256color": termenv.ANSI256,
		"xterm-kitty":     termenv.TrueColor,
		"foot-direct":     termenv.TrueColor,
	}
	for term, want := range cases {
		if got := ProfileFor(term); got != want {
			t.Fatalf("ProfileFor(%q) = %v, want %v", term, got, want)
		}
	}
}
