package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders header, activity log, input line and status bar.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderLogPanel(),
	}
	if m.opts.Role != RoleScene {
		sections = append(sections, m.input.View())
	}
	sections = append(sections, m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := fmt.Sprintf("rcarelay %s", m.opts.Role)
	if m.opts.Role == RoleUnit {
		title = fmt.Sprintf("rcarelay unit %q", m.opts.Name)
	}

	var state string
	switch m.state {
	case stateConnecting:
		state = connectingStyle.Render(SafeIcon(IconHourglass) + "connecting to " + m.opts.Addr)
	case stateConnected:
		state = connectedStyle.Render(SafeIcon(IconCheck) + "connected to " + m.opts.Addr)
	case stateListening:
		state = connectedStyle.Render(SafeIcon(IconCheck) + "listening on " + m.opts.Addr)
	case stateDisconnected:
		state = disconnectedStyle.Render(SafeIcon(IconCross) + "disconnected")
	}
	return headerStyle.Width(max(m.width, 1)).Render(title + "  " + state)
}

func (m Model) renderLogPanel() string {
	title := logRecvStyle.Render(SafeIcon(IconScroll) + "Activity Log")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View())
	return panelStyle.Width(max(m.width-panelStyle.GetHorizontalBorderSize(), 1)).Render(content)
}

func (m Model) renderStatusBar() string {
	text := m.status
	if text == "" {
		text = "enter send • ↑/↓ scroll • ctrl+y copy log • esc quit"
		if m.opts.Role == RoleScene {
			text = "↑/↓ scroll • ctrl+y copy log • esc quit"
		}
	}
	style := statusBarStyle
	if m.statusIsError {
		style = style.Foreground(disconnectedStyle.GetForeground())
	}
	return style.Width(max(m.width, 1)).Render(text)
}

// renderLog styles and truncates the activity log to the viewport width so
// the viewport never wraps.
func (m Model) renderLog() string {
	width := m.viewport.Width
	out := make([]string, len(m.lines))
	for i, line := range m.lines {
		out[i] = styleLogLine(truncateLine(line, width))
	}
	return strings.Join(out, "\n")
}

func styleLogLine(l string) string {
	switch {
	case strings.Contains(l, "[ERROR]"), strings.Contains(l, IconCross):
		return logErrorStyle.Render(l)
	case strings.Contains(l, "[WARN]"):
		return logWarnStyle.Render(l)
	case strings.Contains(l, "[DEBUG]"):
		return logDebugStyle.Render(l)
	case strings.Contains(l, IconArrowIn):
		return logRecvStyle.Render(l)
	default:
		return logInfoStyle.Render(l)
	}
}
