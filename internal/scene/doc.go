// Package scene connects the relay to the scene process.
//
// TCPForwarder owns the relay's outbound connection. Frames handed to Send
// are queued and written in order by a single goroutine; when the scene is
// unreachable the forwarder redials every reconnect interval, or gives up
// after one attempt when the interval is zero. Status transitions are
// reported through an UpdateFunc, with repeated identical states suppressed.
//
// Server is a minimal scene used by the simulators and the scenario
// harness. It records every "{name : payload}" frame it receives.
package scene
