package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rcarelay/pkg/logging"
)

type connectedMsg struct{ conn Conn }

type connectFailedMsg struct{ err error }

type incomingMsg struct{ payload string }

type connClosedMsg struct{}

type frameMsg struct{ frame string }

type logEntryMsg struct{ entry logging.LogEntry }

type sendResultMsg struct {
	text string
	err  error
}

type clearStatusMsg struct{ seq int }

func connectCmd(dial DialFunc, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conn, err := dial(ctx)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

func waitForIncoming(conn Conn) tea.Cmd {
	return func() tea.Msg {
		payload, ok := <-conn.Incoming()
		if !ok {
			return connClosedMsg{}
		}
		return incomingMsg{payload: payload}
	}
}

func waitForFrame(frames <-chan string) tea.Cmd {
	if frames == nil {
		return nil
	}
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			return nil
		}
		return frameMsg{frame: frame}
	}
}

func waitForLog(ch <-chan logging.LogEntry) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return nil
		}
		return logEntryMsg{entry: entry}
	}
}

func sendCmd(conn Conn, text string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{text: text, err: conn.Send(text)}
	}
}

func clearStatusAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}
