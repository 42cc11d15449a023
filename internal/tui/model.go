// Package tui implements the interactive session browser.
//
// Built on Bubble Tea's Model-Update-View architecture: the Model is
// immutable state, Update handles messages and returns a new Model, and
// View renders the current state to a string.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

// ─── Screens ─────────────────────────────────────────────────────────────────

type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenSessions
	ScreenSessionDetail
	ScreenFilter
)

// ─── Model ───────────────────────────────────────────────────────────────────

type Model struct {
	store session.Store

	Screen     Screen
	PrevScreen Screen
	Width      int
	Height     int
	ErrorMsg   string

	// Navigation state
	Cursor       int
	Scroll       int
	DetailScroll int

	// Data
	Sessions []session.Summary
	Filter   string
	Selected *session.Session

	FilterInput textinput.Model
}

func New(s session.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Filter sessions..."
	ti.CharLimit = 128
	ti.Width = 40

	return Model{
		store:       s,
		Screen:      ScreenDashboard,
		FilterInput: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return loadSessions(m.store)
}

// visibleSessions applies the current filter.
func (m Model) visibleSessions() []session.Summary {
	if m.Filter == "" {
		return m.Sessions
	}
	var out []session.Summary
	for _, sm := range m.Sessions {
		if containsFold(sm.ID, m.Filter) {
			out = append(out, sm)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
