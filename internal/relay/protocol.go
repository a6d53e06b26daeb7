package relay

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// PlannerHandshake is the handshake byte of the planner.
	PlannerHandshake byte = 'p'
	// ShutdownByte is the planner's shutdown command. It is never a handshake.
	ShutdownByte byte = 'e'
	// CommandSeparator joins commands inside one payload.
	CommandSeparator byte = '|'
	// NameSeparator splits a command into target name and payload.
	NameSeparator byte = ':'
)

// ShutdownToken is the shutdown command as written to units.
var ShutdownToken = []byte{ShutdownByte}

// IsHandshake reports whether payload is a one-byte handshake.
func IsHandshake(payload []byte) bool {
	return len(payload) == 1 && payload[0] != ShutdownByte
}

// IsShutdown reports whether a command fragment is the shutdown command.
func IsShutdown(cmd []byte) bool {
	return len(cmd) == 1 && cmd[0] == ShutdownByte
}

// SplitBatch splits a payload into command fragments. Empty fragments are
// kept so that every fragment reaches a handler.
func SplitBatch(payload []byte) [][]byte {
	return bytes.Split(payload, []byte{CommandSeparator})
}

// ParseCommand splits cmd on its first ':' into target name and payload.
// The payload may contain further ':' bytes.
func ParseCommand(cmd []byte) (name string, payload []byte, err error) {
	before, after, found := bytes.Cut(cmd, []byte{NameSeparator})
	if !found {
		return "", nil, fmt.Errorf("%w: %q has no %q separator", ErrMalformedCommand, cmd, NameSeparator)
	}
	return string(before), after, nil
}

// SceneFrame formats a unit command for the scene: "{name : payload}".
func SceneFrame(name string, payload []byte) []byte {
	frame := make([]byte, 0, len(name)+len(payload)+5)
	frame = append(frame, '{')
	frame = append(frame, name...)
	frame = append(frame, " : "...)
	frame = append(frame, payload...)
	frame = append(frame, '}')
	return frame
}

// FormatCommand builds a "name:payload" command.
func FormatCommand(name, payload string) string {
	return name + string(NameSeparator) + payload
}

// JoinBatch joins commands into one '|' separated payload.
func JoinBatch(cmds ...string) []byte {
	return []byte(strings.Join(cmds, string(CommandSeparator)))
}
