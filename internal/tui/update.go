package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ─── Update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Global quit — always works
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		// If the filter input is focused, let it handle most keys
		if m.Screen == ScreenFilter && m.FilterInput.Focused() {
			return m.handleFilterInputKeys(msg)
		}
		return m.handleKeyPress(msg.String())

	// ─── Data loaded messages ────────────────────────────────────────────
	case sessionsLoadedMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Sessions = msg.sessions
		return m, nil

	case sessionDetailMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		if msg.session == nil {
			m.ErrorMsg = "session not found"
			return m, nil
		}
		m.Selected = msg.session
		m.Screen = ScreenSessionDetail
		m.DetailScroll = 0
		return m, nil

	case sessionResetMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		// Refresh both the list and, if open, the detail pane.
		if m.Screen == ScreenSessionDetail {
			return m, tea.Batch(loadSessions(m.store), loadSessionDetail(m.store, msg.id))
		}
		return m, loadSessions(m.store)
	}

	return m, nil
}

// ─── Key Press Router ────────────────────────────────────────────────────────

func (m Model) handleKeyPress(key string) (tea.Model, tea.Cmd) {
	// Clear error on any keypress
	m.ErrorMsg = ""

	switch m.Screen {
	case ScreenDashboard:
		return m.handleDashboardKeys(key)
	case ScreenSessions:
		return m.handleSessionsKeys(key)
	case ScreenSessionDetail:
		return m.handleSessionDetailKeys(key)
	case ScreenFilter:
		return m.handleFilterKeys(key)
	}
	return m, nil
}

// ─── Dashboard ───────────────────────────────────────────────────────────────

var dashboardMenuItems = []string{
	"Browse sessions",
	"Quit",
}

func (m Model) handleDashboardKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(dashboardMenuItems)-1 {
			m.Cursor++
		}
	case "enter", " ":
		return m.handleDashboardSelection()
	case "s":
		m.PrevScreen = ScreenDashboard
		m.Screen = ScreenSessions
		m.Cursor = 0
		m.Scroll = 0
		return m, loadSessions(m.store)
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleDashboardSelection() (tea.Model, tea.Cmd) {
	switch m.Cursor {
	case 0: // Sessions
		m.PrevScreen = ScreenDashboard
		m.Screen = ScreenSessions
		m.Cursor = 0
		m.Scroll = 0
		return m, loadSessions(m.store)
	case 1: // Quit
		return m, tea.Quit
	}
	return m, nil
}

// ─── Filter Input ────────────────────────────────────────────────────────────

func (m Model) handleFilterInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.Filter = m.FilterInput.Value()
		m.FilterInput.Blur()
		m.Screen = ScreenSessions
		m.Cursor = 0
		m.Scroll = 0
		return m, nil
	case "esc":
		m.FilterInput.Blur()
		m.Screen = ScreenSessions
		m.Cursor = 0
		return m, nil
	}

	// Let the text input component handle everything else
	var cmd tea.Cmd
	m.FilterInput, cmd = m.FilterInput.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "q":
		m.Screen = ScreenSessions
		m.Cursor = 0
		return m, nil
	case "i", "/":
		m.FilterInput.Focus()
		return m, nil
	}
	return m, nil
}

// ─── Sessions ────────────────────────────────────────────────────────────────

func (m Model) handleSessionsKeys(key string) (tea.Model, tea.Cmd) {
	visible := m.visibleSessions()
	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}

	switch key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Scroll {
				m.Scroll = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < len(visible)-1 {
			m.Cursor++
			if m.Cursor >= m.Scroll+visibleItems {
				m.Scroll = m.Cursor - visibleItems + 1
			}
		}
	case "enter":
		if len(visible) > 0 && m.Cursor < len(visible) {
			m.PrevScreen = ScreenSessions
			return m, loadSessionDetail(m.store, visible[m.Cursor].ID)
		}
	case "r":
		if len(visible) > 0 && m.Cursor < len(visible) {
			return m, resetSession(m.store, visible[m.Cursor].ID)
		}
	case "/":
		m.PrevScreen = ScreenSessions
		m.Screen = ScreenFilter
		m.FilterInput.SetValue(m.Filter)
		m.FilterInput.Focus()
		return m, nil
	case "c":
		m.Filter = ""
		m.Cursor = 0
		m.Scroll = 0
		return m, nil
	case "esc", "q":
		m.Screen = ScreenDashboard
		m.Cursor = 0
		m.Scroll = 0
		return m, nil
	}
	return m, nil
}

// ─── Session Detail ──────────────────────────────────────────────────────────

func (m Model) handleSessionDetailKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.DetailScroll > 0 {
			m.DetailScroll--
		}
	case "down", "j":
		m.DetailScroll++
	case "r":
		if m.Selected != nil {
			return m, resetSession(m.store, m.Selected.ID)
		}
	case "esc", "q":
		m.Screen = ScreenSessions
		m.DetailScroll = 0
		return m, nil
	}
	return m, nil
}
