// Package relay implements the command relay between one planner and a set
// of named units.
//
// # Wire protocol
//
// Every read from a connection is treated as one payload. A payload of
// exactly one byte other than 'e' is a handshake: 'p' announces the planner,
// any other byte announces a unit with that one-byte name. Every other
// payload is a batch of commands joined by '|'. A command is "name:payload".
//
//   - Planner commands are delivered to the named unit as the bare payload.
//     The single command "e" is written to every unit and clears the unit
//     table (shutdown broadcast).
//   - Commands from any other connection are forwarded to the scene as
//     "{name : payload}".
//
// # Concurrency
//
// A Router owns the Registry and mutates it from a single event loop
// goroutine started by Run. Each accepted connection has a reader goroutine
// that posts payloads to the loop and a writer goroutine that drains a
// bounded outbound queue, so the loop never blocks on a socket.
//
// # Handshake collisions
//
// A handshake for a planner slot or unit name whose holder is still
// connected is rejected; the new connection stays unidentified. A holder that
// has already disconnected is disposed and replaced.
package relay
