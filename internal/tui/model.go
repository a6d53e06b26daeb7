package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"rcarelay/pkg/logging"
)

// Role selects which process a simulator stands in for.
type Role int

const (
	RolePlanner Role = iota
	RoleUnit
	RoleScene
)

func (r Role) String() string {
	switch r {
	case RolePlanner:
		return "planner"
	case RoleUnit:
		return "unit"
	case RoleScene:
		return "scene"
	default:
		return "unknown"
	}
}

// Conn is the relay connection used by the planner and unit simulators.
// *client.Client satisfies it.
type Conn interface {
	Send(cmds ...string) error
	Incoming() <-chan string
	Close() error
}

// DialFunc opens the relay connection for a planner or unit simulator.
type DialFunc func(ctx context.Context) (Conn, error)

// Options configures a simulator model.
type Options struct {
	Role Role
	// Name is the handshake byte for a unit.
	Name string
	// Addr is shown in the header: the relay address for planner and unit,
	// the listen address for the scene.
	Addr string
	Dial DialFunc
	// Frames carries scene frames to the scene simulator.
	Frames <-chan string
	// LogChannel is the pkg/logging TUI channel. May be nil.
	LogChannel <-chan logging.LogEntry
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
}

type connState int

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnected
	stateListening
)

// Model is the Bubble Tea model shared by all simulators.
type Model struct {
	opts Options

	state   connState
	conn    Conn
	lastErr error

	lines    []string
	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	ready    bool

	status        string
	statusIsError bool
	statusSeq     int
}

// NewModel builds the model for opts.Role.
func NewModel(opts Options) Model {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	ti := textinput.New()
	ti.CharLimit = 4096
	switch opts.Role {
	case RolePlanner:
		ti.Placeholder = "a:t|b:f"
		ti.Prompt = "planner> "
	case RoleUnit:
		ti.Placeholder = "payload or name:payload"
		ti.Prompt = fmt.Sprintf("unit %s> ", opts.Name)
	}
	ti.Focus()

	m := Model{
		opts:  opts,
		input: ti,
	}
	if opts.Role == RoleScene {
		m.state = stateListening
	}
	return m
}

// Lines returns the activity log without styling.
func (m Model) Lines() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *Model) appendLine(line string) {
	atBottom := m.viewport.AtBottom()
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderLog())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) logf(format string, args ...interface{}) {
	m.appendLine(fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// formatLogEntry renders a pkg/logging entry as one activity log line.
func formatLogEntry(e logging.LogEntry) string {
	line := fmt.Sprintf("%s [%s] %s: %s", e.Timestamp.Format("15:04:05"), e.Level, e.Subsystem, e.Message)
	if e.Err != nil {
		line += fmt.Sprintf(" (%v)", e.Err)
	}
	return line
}

// outgoing turns an input line into the command text sent on the wire.
func (m Model) outgoing(text string) string {
	if m.opts.Role == RoleUnit && !strings.Contains(text, ":") {
		return m.opts.Name + ":" + text
	}
	return text
}
