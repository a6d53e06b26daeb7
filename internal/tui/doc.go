// Package tui provides terminal stand-ins for the processes around the relay.
//
// Each simulator is a Bubble Tea program with the same layout: a header with
// the role and connection state, a scrolling activity log, a command input
// and a status bar.
//
//   - Planner: connects with the "p" handshake and sends '|' separated
//     command batches such as "a:t|b:f". It logs nothing it receives
//     because the relay never writes to the planner.
//   - Unit: connects with a one-byte name and shows every payload the relay
//     delivers. Typed input is sent as a unit command; a bare payload is
//     prefixed with the unit's own name.
//   - Scene: listens where the relay's scene forwarder dials and shows each
//     "{name : payload}" frame it receives. It has no input line.
//
// # Keys
//
//	enter        send the input line
//	↑/↓ pgup/pgdn scroll the activity log
//	ctrl+y       copy the activity log to the clipboard
//	esc, ctrl+c  quit
//
// While a simulator runs, pkg/logging is switched to its TUI channel mode and
// every log entry is shown in the activity log instead of on the terminal.
package tui
