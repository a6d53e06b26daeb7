package relay

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"rcarelay/pkg/logging"
)

// ConnState mirrors the state of the underlying transport.
type ConnState int32

const (
	StateConnected ConnState = iota
	StateDisconnected
)

func (s ConnState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Connection is one accepted socket. Its identity is owned by the Router
// loop; the transport is owned by the connection and released by Close.
type Connection struct {
	id         uuid.UUID
	remoteAddr string
	transport  net.Conn

	// identity is only read and written on the Router loop.
	identity Identity

	state     atomic.Int32
	outbound  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	writerWG  sync.WaitGroup
}

func newConnection(transport net.Conn, queueSize int) *Connection {
	if queueSize <= 0 {
		queueSize = 1
	}
	remote := "unknown"
	if addr := transport.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c := &Connection{
		id:         uuid.New(),
		remoteAddr: remote,
		transport:  transport,
		identity:   Unidentified(),
		outbound:   make(chan []byte, queueSize),
		closed:     make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))
	c.writerWG.Add(1)
	go c.writeLoop()
	return c
}

// ID returns the connection's unique id.
func (c *Connection) ID() uuid.UUID { return c.id }

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// State reports whether the transport is still usable.
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

// IsConnected is shorthand for State() == StateConnected.
func (c *Connection) IsConnected() bool { return c.State() == StateConnected }

func (c *Connection) String() string {
	return fmt.Sprintf("%s[%s]", c.id.String()[:8], c.remoteAddr)
}

func (c *Connection) markDisconnected() {
	c.state.Store(int32(StateDisconnected))
}

// Send queues p for writing without blocking. It returns ErrQueueFull when
// the outbound queue has no room and ErrConnectionClosed after Close.
func (c *Connection) Send(p []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.outbound <- p:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, c)
	}
}

func (c *Connection) writeLoop() {
	defer c.writerWG.Done()
	for {
		select {
		case <-c.closed:
			return
		case p := <-c.outbound:
			if _, err := c.transport.Write(p); err != nil {
				logging.Debug("Connection", "write to %s failed: %v", c, err)
				c.markDisconnected()
				// Closing the transport wakes the reader, which reports the disconnect.
				c.transport.Close()
				return
			}
		}
	}
}

// Close marks the connection disconnected, abandons queued writes and
// releases the transport. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.markDisconnected()
		close(c.closed)
		err = c.transport.Close()
		c.writerWG.Wait()
	})
	return err
}
