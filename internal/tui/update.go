package tui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// For mocking in tests
var copyToClipboard = clipboard.WriteAll

const statusDuration = 3 * time.Second

// Init starts the connection attempt and the log and frame listeners.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForLog(m.opts.LogChannel)}
	switch m.opts.Role {
	case RoleScene:
		cmds = append(cmds, waitForFrame(m.opts.Frames))
	default:
		if m.opts.Dial != nil {
			cmds = append(cmds, connectCmd(m.opts.Dial, m.opts.DialTimeout))
		}
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update handles terminal input and simulator events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connectedMsg:
		m.conn = msg.conn
		m.state = stateConnected
		m.lastErr = nil
		m.logf("%sconnected to relay at %s", SafeIcon(IconCheck), m.opts.Addr)
		return m, waitForIncoming(msg.conn)

	case connectFailedMsg:
		m.state = stateDisconnected
		m.lastErr = msg.err
		m.logf("%sconnect failed: %v", SafeIcon(IconCross), msg.err)
		return m, m.setStatus("Connect failed", true)

	case incomingMsg:
		m.logf("%s%s", SafeIcon(IconArrowIn), msg.payload)
		return m, waitForIncoming(m.conn)

	case connClosedMsg:
		m.state = stateDisconnected
		m.logf("%sconnection closed by relay", SafeIcon(IconCross))
		return m, nil

	case frameMsg:
		m.logf("%s%s", SafeIcon(IconArrowIn), msg.frame)
		return m, waitForFrame(m.opts.Frames)

	case logEntryMsg:
		m.appendLine(formatLogEntry(msg.entry))
		return m, waitForLog(m.opts.LogChannel)

	case sendResultMsg:
		if msg.err != nil {
			m.logf("%ssend %q failed: %v", SafeIcon(IconCross), msg.text, msg.err)
			return m, m.setStatus("Send failed", true)
		}
		m.logf("%s%s", SafeIcon(IconArrowOut), msg.text)
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusIsError = false
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	vpHeight := max(msg.Height-chromeHeight, 1)
	vpWidth := max(msg.Width-panelStyle.GetHorizontalFrameSize(), 1)
	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.conn != nil {
			m.conn.Close()
		}
		return m, tea.Quit

	case "ctrl+y":
		if err := copyToClipboard(strings.Join(m.lines, "\n")); err != nil {
			return m, m.setStatus("Copy logs failed: "+err.Error(), true)
		}
		return m, m.setStatus("Logs copied to clipboard", false)

	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		if m.opts.Role == RoleScene {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.conn == nil || m.state != stateConnected {
			return m, m.setStatus("Not connected", true)
		}
		m.input.Reset()
		return m, sendCmd(m.conn, m.outgoing(text))
	}

	if m.opts.Role == RoleScene {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setStatus(text string, isError bool) tea.Cmd {
	m.statusSeq++
	m.status = text
	m.statusIsError = isError
	return clearStatusAfter(m.statusSeq, statusDuration)
}
