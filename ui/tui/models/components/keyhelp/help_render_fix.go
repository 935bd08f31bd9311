// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keyhelp renders bubbles key help so that it never wraps: items
// that do not fit the help model's width collapse into an ellipsis.
package keyhelp

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// fit keeps items from the left while they fit in width. When something
// had to be dropped the tail is appended, if it still fits.
func fit(items []string, width int, tail string) []string {
	if width <= 0 {
		return items
	}
	tailLen := lipgloss.Width(tail)
	used := 0
	var out []string
	for i, item := range items {
		w := lipgloss.Width(item)
		last := i == len(items)-1
		if (last && used+w <= width) || (!last && used+w+tailLen <= width) {
			out = append(out, item)
			used += w
			continue
		}
		if used+tailLen <= width {
			out = append(out, tail)
		}
		break
	}
	return out
}

// ShortHelpView renders enabled bindings on one line.
func ShortHelpView(m help.Model, bindings []key.Binding) string {
	sep := m.Styles.ShortSeparator.Inline(true).Render(m.ShortSeparator)
	var items []string
	for _, kb := range bindings {
		if !kb.Enabled() {
			continue
		}
		item := m.Styles.ShortKey.Inline(true).Render(kb.Help().Key) + " " +
			m.Styles.ShortDesc.Inline(true).Render(kb.Help().Desc)
		if len(items) > 0 {
			item = sep + item
		}
		items = append(items, item)
	}
	tail := " " + m.Styles.Ellipsis.Inline(true).Render(m.Ellipsis)
	return strings.Join(fit(items, m.Width, tail), "")
}

// FullHelpView renders each group as a key column next to a description
// column. Groups with no enabled binding are skipped.
func FullHelpView(m help.Model, groups [][]key.Binding) string {
	sep := m.Styles.FullSeparator.Inline(true).Render(m.FullSeparator)
	var cols []string
	for _, group := range groups {
		if !slices.ContainsFunc(group, key.Binding.Enabled) {
			continue
		}
		var keys, descs []string
		for _, kb := range group {
			if kb.Enabled() {
				keys = append(keys, kb.Help().Key)
				descs = append(descs, kb.Help().Desc)
			}
		}
		col := lipgloss.JoinHorizontal(lipgloss.Top,
			m.Styles.FullKey.Render(lipgloss.JoinVertical(lipgloss.Left, keys...)),
			" ",
			m.Styles.FullDesc.Render(lipgloss.JoinVertical(lipgloss.Left, descs...)),
		)
		if len(cols) > 0 {
			col = lipgloss.JoinHorizontal(lipgloss.Top, sep, col)
		}
		cols = append(cols, col)
	}
	tail := " " + m.Styles.Ellipsis.Inline(true).Render(m.Ellipsis)
	return lipgloss.JoinHorizontal(lipgloss.Top, fit(cols, m.Width, tail)...)
}
