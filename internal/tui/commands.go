package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

// ─── Messages ────────────────────────────────────────────────────────────────

type sessionsLoadedMsg struct {
	sessions []session.Summary
	err      error
}

type sessionDetailMsg struct {
	session *session.Session
	err     error
}

type sessionResetMsg struct {
	id  string
	err error
}

// ─── Commands ────────────────────────────────────────────────────────────────

func loadSessions(s session.Store) tea.Cmd {
	return func() tea.Msg {
		sums, err := s.List()
		return sessionsLoadedMsg{sessions: sums, err: err}
	}
}

func loadSessionDetail(s session.Store, id string) tea.Cmd {
	return func() tea.Msg {
		sess, err := s.Get(id)
		return sessionDetailMsg{session: sess, err: err}
	}
}

func resetSession(s session.Store, id string) tea.Cmd {
	return func() tea.Msg {
		err := s.Reset(id)
		return sessionResetMsg{id: id, err: err}
	}
}
