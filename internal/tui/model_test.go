package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcarelay/pkg/logging"
)

type fakeConn struct {
	mu       sync.Mutex
	sent     []string
	sendErr  error
	incoming chan string
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan string, 8)}
}

func (f *fakeConn) Send(cmds ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, strings.Join(cmds, "|"))
	return nil
}

func (f *fakeConn) Incoming() <-chan string { return f.incoming }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func lastLine(m Model) string {
	lines := m.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := NewModel(Options{Role: RolePlanner, Addr: "127.0.0.1:5555"})
	assert.Equal(t, "Initializing...", m.View())
}

func TestModel_ConnectCmd(t *testing.T) {
	conn := newFakeConn()
	dialed := false
	m := NewModel(Options{
		Role: RolePlanner,
		Dial: func(ctx context.Context) (Conn, error) {
			dialed = true
			return conn, nil
		},
	})
	msg := connectCmd(m.opts.Dial, time.Second)()
	assert.True(t, dialed)
	assert.Equal(t, connectedMsg{conn: conn}, msg)

	failing := connectCmd(func(context.Context) (Conn, error) { return nil, errors.New("refused") }, time.Second)()
	require.IsType(t, connectFailedMsg{}, failing)
	assert.EqualError(t, failing.(connectFailedMsg).err, "refused")
}

func TestModel_PlannerSendsBatch(t *testing.T) {
	conn := newFakeConn()
	m := sized(t, NewModel(Options{Role: RolePlanner, Addr: "relay:5555"}))
	m, cmd := update(t, m, connectedMsg{conn: conn})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "connected to relay:5555")

	m = typeText(t, m, "a:t|b:f")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	result := cmd()
	assert.Equal(t, []string{"a:t|b:f"}, conn.Sent())

	m, _ = update(t, m, result)
	assert.Contains(t, lastLine(m), "a:t|b:f")
	assert.Contains(t, lastLine(m), IconArrowOut)
}

func TestModel_UnitPrefixesBarePayload(t *testing.T) {
	conn := newFakeConn()
	m := sized(t, NewModel(Options{Role: RoleUnit, Name: "a"}))
	m, _ = update(t, m, connectedMsg{conn: conn})

	m = typeText(t, m, "moved")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()

	m = typeText(t, m, "b:other")
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"a:moved", "b:other"}, conn.Sent())
}

func TestModel_EnterWhileDisconnected(t *testing.T) {
	m := sized(t, NewModel(Options{Role: RolePlanner}))
	m = typeText(t, m, "a:t")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd, "status clear tick")
	assert.Equal(t, "Not connected", m.status)
	assert.True(t, m.statusIsError)
	assert.Equal(t, "a:t", m.input.Value(), "input kept for retry")
}

func TestModel_SendFailure(t *testing.T) {
	m := sized(t, NewModel(Options{Role: RolePlanner}))
	m, _ = update(t, m, sendResultMsg{text: "a:t", err: errors.New("broken pipe")})
	assert.Contains(t, lastLine(m), "broken pipe")
	assert.Equal(t, "Send failed", m.status)
}

func TestModel_IncomingAndClose(t *testing.T) {
	conn := newFakeConn()
	m := sized(t, NewModel(Options{Role: RoleUnit, Name: "a"}))
	m, _ = update(t, m, connectedMsg{conn: conn})

	conn.incoming <- "t"
	m, cmd := update(t, m, waitForIncoming(conn)())
	require.NotNil(t, cmd)
	assert.Contains(t, lastLine(m), IconArrowIn+" t")

	close(conn.incoming)
	m, _ = update(t, m, cmd())
	assert.Equal(t, stateDisconnected, m.state)
	assert.Contains(t, m.View(), "disconnected")
}

func TestModel_ConnectFailed(t *testing.T) {
	m := sized(t, NewModel(Options{Role: RoleUnit, Name: "a"}))
	m, _ = update(t, m, connectFailedMsg{err: errors.New("connection refused")})
	assert.Equal(t, stateDisconnected, m.state)
	assert.Contains(t, lastLine(m), "connection refused")
}

func TestModel_SceneShowsFrames(t *testing.T) {
	frames := make(chan string, 1)
	m := sized(t, NewModel(Options{Role: RoleScene, Addr: "127.0.0.1:6666", Frames: frames}))
	assert.Contains(t, m.View(), "listening on 127.0.0.1:6666")

	frames <- "{a : moved}"
	m, cmd := update(t, m, waitForFrame(frames)())
	require.NotNil(t, cmd)
	assert.Contains(t, lastLine(m), "{a : moved}")

	// Scene has no input line; typing does nothing.
	m = typeText(t, m, "ignored")
	assert.Empty(t, m.input.Value())
}

func TestModel_LogEntries(t *testing.T) {
	logs := make(chan logging.LogEntry, 1)
	m := sized(t, NewModel(Options{Role: RoleScene, LogChannel: logs}))
	logs <- logging.LogEntry{
		Timestamp: time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Level:     logging.LevelWarn,
		Subsystem: "Scene",
		Message:   "queue full",
		Err:       errors.New("dropped"),
	}
	m, cmd := update(t, m, waitForLog(logs)())
	require.NotNil(t, cmd)
	assert.Equal(t, "12:30:00 [WARN] Scene: queue full (dropped)", lastLine(m))
}

func TestModel_LogIsBounded(t *testing.T) {
	m := sized(t, NewModel(Options{Role: RoleScene}))
	for i := 0; i < maxLogLines+10; i++ {
		m, _ = update(t, m, frameMsg{frame: "x"})
	}
	assert.Len(t, m.Lines(), maxLogLines)
}

func TestModel_CopyLog(t *testing.T) {
	var copied string
	orig := copyToClipboard
	t.Cleanup(func() { copyToClipboard = orig })
	copyToClipboard = func(s string) error { copied = s; return nil }

	m := sized(t, NewModel(Options{Role: RoleScene}))
	m, _ = update(t, m, frameMsg{frame: "one"})
	m, _ = update(t, m, frameMsg{frame: "two"})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Equal(t, strings.Join(m.Lines(), "\n"), copied)
	assert.Equal(t, "Logs copied to clipboard", m.status)

	copyToClipboard = func(string) error { return errors.New("no clipboard") }
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.True(t, m.statusIsError)
}

func TestModel_StatusClears(t *testing.T) {
	m := sized(t, NewModel(Options{Role: RolePlanner}))
	m, _ = update(t, m, connectFailedMsg{err: errors.New("x")})
	seq := m.statusSeq

	m, _ = update(t, m, clearStatusMsg{seq: seq - 1})
	assert.NotEmpty(t, m.status, "stale clear ignored")
	m, _ = update(t, m, clearStatusMsg{seq: seq})
	assert.Empty(t, m.status)
}

func TestModel_QuitClosesConnection(t *testing.T) {
	conn := newFakeConn()
	m := sized(t, NewModel(Options{Role: RolePlanner}))
	m, _ = update(t, m, connectedMsg{conn: conn})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, conn.closed)
}

func TestTruncateLine(t *testing.T) {
	assert.Equal(t, "short", truncateLine("short", 10))
	assert.Equal(t, "abcd…", truncateLine("abcdefgh", 5))
	assert.Equal(t, "anything", truncateLine("anything", 0))
}
