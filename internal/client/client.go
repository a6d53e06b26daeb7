// Package client speaks the relay wire protocol from the planner or unit side.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"rcarelay/internal/relay"
	"rcarelay/pkg/logging"
)

const subsystem = "Client"

// DefaultSettleDelay separates the handshake from the first command so the
// relay reads them as two payloads.
const DefaultSettleDelay = 50 * time.Millisecond

// ErrInvalidName is returned for a handshake name that is not a single byte
// or that collides with the shutdown command.
var ErrInvalidName = errors.New("invalid client name")

// Options tunes a Client.
type Options struct {
	SettleDelay time.Duration
	// CloseOnShutdown closes the client when the relay sends the shutdown command.
	CloseOnShutdown bool
	ReadBufferSize  int
	// IncomingBuffer is the capacity of the Incoming channel.
	IncomingBuffer int
}

// Client is one connection to the relay.
type Client struct {
	name      string
	conn      net.Conn
	opts      Options
	incoming  chan string
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
}

// ValidateName checks that name can be used as a handshake.
func ValidateName(name string) error {
	if len(name) != 1 {
		return fmt.Errorf("%w: %q must be exactly one byte", ErrInvalidName, name)
	}
	if name[0] == relay.ShutdownByte {
		return fmt.Errorf("%w: %q is reserved for shutdown", ErrInvalidName, name)
	}
	return nil
}

// Dial connects to the relay at addr and sends name as the handshake.
// Use "p" to connect as the planner.
func Dial(ctx context.Context, addr, name string, opts Options) (*Client, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = 4096
	}
	if opts.IncomingBuffer <= 0 {
		opts.IncomingBuffer = 256
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay at %s: %w", addr, err)
	}
	if _, err := conn.Write([]byte(name)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send handshake %q: %w", name, err)
	}

	c := &Client{
		name:     name,
		conn:     conn,
		opts:     opts,
		incoming: make(chan string, opts.IncomingBuffer),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go c.readLoop()

	timer := time.NewTimer(opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	case <-timer.C:
	}

	logging.Debug(subsystem, "Connected to %s as %q", addr, name)
	return c, nil
}

// Name returns the handshake name.
func (c *Client) Name() string { return c.name }

// IsPlanner reports whether the client connected as the planner.
func (c *Client) IsPlanner() bool { return c.name[0] == relay.PlannerHandshake }

// LocalAddr returns the client side address.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Send writes cmds as one '|' separated payload.
func (c *Client) Send(cmds ...string) error {
	if len(cmds) == 0 {
		return nil
	}
	return c.SendRaw(relay.JoinBatch(cmds...))
}

// SendRaw writes p as is.
func (c *Client) SendRaw(p []byte) error {
	select {
	case <-c.closed:
		return relay.ErrConnectionClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(p); err != nil {
		return fmt.Errorf("write to relay failed: %w", err)
	}
	return nil
}

// Incoming delivers each payload read from the relay. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan string { return c.incoming }

// Done is closed once the connection has ended and Incoming is closed.
func (c *Client) Done() <-chan struct{} { return c.readDone }

func (c *Client) readLoop() {
	defer close(c.readDone)
	defer close(c.incoming)

	buf := make([]byte, c.opts.ReadBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			msg := string(buf[:n])
			select {
			case c.incoming <- msg:
			case <-c.closed:
				return
			}
			if c.opts.CloseOnShutdown && msg == string(relay.ShutdownToken) {
				logging.Info(subsystem, "Unit %q received shutdown, closing", c.name)
				c.Close()
				return
			}
		}
		if err != nil {
			logging.Debug(subsystem, "Connection %q ended: %v", c.name, err)
			return
		}
	}
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
