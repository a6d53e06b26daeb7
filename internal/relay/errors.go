package relay

import "errors"

var (
	// ErrMalformedCommand is returned for a command fragment without a ':' separator.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrUnknownTarget is returned when a planner command names an unregistered unit.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrHandshakeRejected is returned when a handshake cannot be applied.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrQueueFull is returned when a connection's outbound queue has no room.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrRouterStopped is returned by calls made after the router loop exited.
	ErrRouterStopped = errors.New("router stopped")
)
