// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package game is the bubbletea view of one blockmove session. It keeps a
// local copy of the grid that it patches from session frames, and turns key
// presses into session commands.
package game

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/blockmove/internal/assets"
	"github.com/toeirei/blockmove/internal/board"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/mode"
	"github.com/toeirei/blockmove/internal/session"
	"github.com/toeirei/blockmove/ui/tui/models/components/header"
	"github.com/toeirei/blockmove/ui/tui/models/components/keyhelp"
	"github.com/toeirei/blockmove/ui/tui/util"
)

// Commander accepts commands for the session lane.
type Commander interface {
	Send(session.Command) error
}

// FrameMsg carries one session frame into the program.
type FrameMsg session.Frame

// ClosedMsg tells the view the session is over. The program quits on it;
// the quit key only asks the session to close.
type ClosedMsg struct {
	Reason session.Reason
}

type Model struct {
	cmds     Commander
	keys     KeyMap
	help     help.Model
	expanded bool
	styles   styles
	renderer *lipgloss.Renderer
	sprites  *assets.Set
	header   *header.Model
	size     util.Size

	user   string
	grid   board.Grid
	ready  bool
	mode   mode.Mode
	stats  board.Stats
	status string
	closed bool
	reason session.Reason
}

// Option configures a Model.
type Option func(*Model)

// WithRenderer binds styles to a per-connection renderer.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(m *Model) { m.renderer = r }
}

// WithSprites sets the mode pictures.
func WithSprites(s *assets.Set) Option {
	return func(m *Model) { m.sprites = s }
}

// WithUser shows the player's name in the sidebar.
func WithUser(name string) Option {
	return func(m *Model) { m.user = name }
}

func New(cmds Commander, opts ...Option) *Model {
	m := &Model{
		cmds: cmds,
		keys: DefaultKeyMap(),
		help: help.New(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.renderer == nil {
		m.renderer = lipgloss.DefaultRenderer()
	}
	if m.sprites == nil {
		m.sprites = assets.LoadSet(nil)
	}
	m.styles = newStyles(m.renderer)
	m.header = header.New(m.renderer)
	m.help.Styles.ShortKey = m.styles.title
	m.help.Styles.ShortDesc = m.styles.help
	m.help.Styles.FullKey = m.styles.title
	m.help.Styles.FullDesc = m.styles.help
	m.help.Width = 80
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle(i18n.T("game.title"))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.size.Update(msg) {
		m.header.Update(msg)
		m.help.Width = util.Clamp(20, m.size.Width, 160)
		return m, nil
	}
	switch msg := msg.(type) {
	case FrameMsg:
		m.applyFrame(session.Frame(msg))
		return m, nil
	case ClosedMsg:
		m.closed = true
		m.reason = msg.Reason
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Help) {
			m.expanded = !m.expanded
			return m, nil
		}
		cmd, ok := m.keys.commandFor(msg)
		if !ok {
			return m, nil
		}
		if err := m.cmds.Send(cmd); err != nil {
			if errors.Is(err, session.ErrClosed) {
				m.closed = true
				return m, tea.Quit
			}
			m.status = err.Error()
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) applyFrame(f session.Frame) {
	if f.Full || !m.ready || m.grid.Width != f.Width || m.grid.Height != f.Height {
		m.grid = board.NewGrid(f.Width, f.Height)
	}
	m.grid.Apply(f.Delta)
	m.ready = true
	m.mode = f.Mode
	m.stats = f.Stats
	switch {
	case f.Rejected != nil:
		m.status = i18n.T("game.rejected." + f.Rejected.Reason.String())
	case f.Command != 0 && f.Command != session.CmdTick:
		m.status = ""
	}
}

func (m Model) View() string {
	if m.closed {
		return i18n.T("game.goodbye", string(m.reason)) + "\n"
	}
	if !m.ready {
		return i18n.T("game.waiting") + "\n"
	}

	well := m.styles.well.Render(m.renderGrid())
	side := m.styles.sidebar.Render(m.renderSidebar())
	body := lipgloss.JoinHorizontal(lipgloss.Top, well, side)

	var footer string
	if m.expanded {
		footer = keyhelp.FullHelpView(m.help, m.keys.FullHelp())
	} else {
		footer = keyhelp.ShortHelpView(m.help, m.keys.ShortHelp())
	}
	if m.header.Fits(lipgloss.Height(body) + lipgloss.Height(footer)) {
		return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m Model) renderGrid() string {
	var sb strings.Builder
	for r := 0; r < m.grid.Height; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < m.grid.Width; c++ {
			k := m.grid.At(r, c)
			if k == board.Empty {
				sb.WriteString(m.styles.empty.Render(" ·"))
				continue
			}
			sb.WriteString(m.styles.cells[k].Render("██"))
		}
	}
	return sb.String()
}

func (m Model) modeStyle() lipgloss.Style {
	switch m.mode {
	case mode.Scared:
		return m.styles.scared
	case mode.GameOver:
		return m.styles.over
	default:
		return m.styles.normal
	}
}

func (m Model) renderSidebar() string {
	lines := []string{
		m.styles.title.Render(i18n.T("game.title")),
	}
	if m.user != "" {
		lines = append(lines, m.styles.help.Render(m.user))
	}
	lines = append(lines,
		"",
		m.sprites.Get(m.mode.Asset()).Render(m.renderer),
		"",
		m.modeStyle().Render(i18n.T("game.mode."+m.mode.String())),
		i18n.T("game.lines", m.stats.LinesCleared),
		i18n.T("game.pieces", m.stats.PiecesLanded),
	)
	if m.status != "" {
		lines = append(lines, "", m.styles.status.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// *Model implements tea.Model
var _ tea.Model = (*Model)(nil)
