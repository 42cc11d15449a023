package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LangBlaze-AI/claude-mcp-server/internal/session"
)

// ─── Styles ──────────────────────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// ─── View ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var body string
	switch m.Screen {
	case ScreenDashboard:
		body = m.viewDashboard()
	case ScreenSessions:
		body = m.viewSessions()
	case ScreenSessionDetail:
		body = m.viewSessionDetail()
	case ScreenFilter:
		body = m.viewFilter()
	default:
		body = "Unknown screen"
	}

	if m.ErrorMsg != "" {
		body += "\n" + errorStyle.Render("Error: "+m.ErrorMsg)
	}
	return body
}

// ─── Dashboard ───────────────────────────────────────────────────────────────

func (m Model) viewDashboard() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("claude-mcp-server"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d sessions", len(m.Sessions))))
	b.WriteString("\n\n")

	for i, item := range dashboardMenuItems {
		if i == m.Cursor {
			b.WriteString(selectedStyle.Render("▸ " + item))
		} else {
			b.WriteString("  " + item)
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("↑/↓ navigate · enter select · q quit"))
	return b.String()
}

// ─── Sessions ────────────────────────────────────────────────────────────────

func (m Model) viewSessions() string {
	var b strings.Builder
	header := "Sessions"
	if m.Filter != "" {
		header += fmt.Sprintf(" (filter: %q)", m.Filter)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	visible := m.visibleSessions()
	if len(visible) == 0 {
		b.WriteString(dimStyle.Render("No sessions"))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("/ filter · c clear filter · esc back"))
		return b.String()
	}

	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}
	end := m.Scroll + visibleItems
	if end > len(visible) {
		end = len(visible)
	}

	for i := m.Scroll; i < end; i++ {
		b.WriteString(m.renderSessionListItem(i, visible[i]))
		b.WriteString("\n")
	}

	if len(visible) > visibleItems {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  showing %d-%d of %d", m.Scroll+1, end, len(visible))))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("↑/↓ navigate · enter open · r reset · / filter · esc back"))
	return b.String()
}

func (m Model) renderSessionListItem(i int, sm session.Summary) string {
	marker := "  "
	if i == m.Cursor {
		marker = selectedStyle.Render("▸ ")
	}
	line := fmt.Sprintf("%s%s", marker, truncateStr(sm.ID, 40))
	meta := fmt.Sprintf("%d turns · last active %s",
		sm.TurnCount, sm.LastAccessedAt.Format("2006-01-02 15:04"))
	return line + "  " + dimStyle.Render(meta)
}

// ─── Session Detail ──────────────────────────────────────────────────────────

func (m Model) viewSessionDetail() string {
	if m.Selected == nil {
		return dimStyle.Render("No session selected")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Session " + m.Selected.ID))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Created: "))
	b.WriteString(m.Selected.CreatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("\n")
	if m.Selected.NativeID != "" {
		b.WriteString(labelStyle.Render("Native handle: "))
		b.WriteString(m.Selected.NativeID)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.Selected.Turns) == 0 {
		b.WriteString(dimStyle.Render("No turns yet"))
		b.WriteString("\n")
	} else {
		lines := m.detailLines()
		visibleLines := m.Height - 10
		if visibleLines < 5 {
			visibleLines = 5
		}
		start := m.DetailScroll
		if start > len(lines)-1 {
			start = len(lines) - 1
		}
		if start < 0 {
			start = 0
		}
		end := start + visibleLines
		if end > len(lines) {
			end = len(lines)
		}
		for _, line := range lines[start:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString(helpStyle.Render("↑/↓ scroll · r reset · esc back"))
	return b.String()
}

func (m Model) detailLines() []string {
	var lines []string
	for i, turn := range m.Selected.Turns {
		lines = append(lines,
			labelStyle.Render(fmt.Sprintf("[%d] %s", i+1, turn.Timestamp.Format("15:04:05"))),
			"  › "+truncateStr(turn.Prompt, 76),
			"    "+dimStyle.Render(truncateStr(turn.Response, 74)),
		)
	}
	return lines
}

// ─── Filter ──────────────────────────────────────────────────────────────────

func (m Model) viewFilter() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Filter sessions"))
	b.WriteString("\n")
	b.WriteString(m.FilterInput.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter apply · esc cancel"))
	return b.String()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func truncateStr(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
