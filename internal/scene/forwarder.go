package scene

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"rcarelay/internal/config"
	"rcarelay/pkg/logging"
)

const subsystem = "SceneForwarder"

// dialTimeout bounds a single dial attempt.
var dialTimeout = 3 * time.Second

// TCPForwarder keeps one outbound TCP connection to the scene and writes
// queued frames to it in order.
type TCPForwarder struct {
	address   string
	interval  time.Duration
	queue     chan []byte
	updateFn  UpdateFunc
	dialer    net.Dialer
	sent      atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Bool
	stateMu   sync.Mutex
	detail    StatusDetail
	lastErr   error
	known     bool
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

// NewTCPForwarder creates a forwarder for cfg. Call Start to begin dialing.
func NewTCPForwarder(cfg config.SceneConfig, updateFn UpdateFunc) *TCPForwarder {
	size := cfg.QueueSize
	if size <= 0 {
		size = config.DefaultSceneQueueSize
	}
	return &TCPForwarder{
		address:  cfg.Address(),
		interval: cfg.ReconnectInterval,
		queue:    make(chan []byte, size),
		updateFn: updateFn,
		dialer:   net.Dialer{Timeout: dialTimeout},
		detail:   StatusInitializing,
		done:     make(chan struct{}),
	}
}

// Address returns the scene endpoint.
func (f *TCPForwarder) Address() string { return f.address }

// Start launches the connection loop. It returns immediately; dial failures
// are reported through the update callback.
func (f *TCPForwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		ctx, f.cancel = context.WithCancel(ctx)
		go f.run(ctx)
	})
}

// Stop ends the connection loop and waits for it to exit.
func (f *TCPForwarder) Stop() {
	// A forwarder that was never started has nothing to wait for.
	f.startOnce.Do(func() { close(f.done) })
	if f.cancel != nil {
		f.cancel()
	}
	<-f.done
}

// Send queues msg for the scene. It never blocks.
func (f *TCPForwarder) Send(msg []byte) {
	if f.failed.Load() {
		f.dropped.Add(1)
		logging.Debug(subsystem, "Scene unavailable, dropping %q", msg)
		return
	}
	select {
	case f.queue <- msg:
	default:
		f.dropped.Add(1)
		logging.Warn(subsystem, "Scene queue full, dropping %q", msg)
	}
}

// Status returns the current connection state and counters.
func (f *TCPForwarder) Status() Status {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	s := Status{
		Address: f.address,
		Detail:  f.detail,
		Sent:    f.sent.Load(),
		Dropped: f.dropped.Load(),
		Queued:  len(f.queue),
	}
	if f.lastErr != nil {
		s.Error = f.lastErr.Error()
	}
	return s
}

func (f *TCPForwarder) reportIfChanged(detail StatusDetail, opErr error) {
	f.stateMu.Lock()
	errorChanged := (f.lastErr != nil) != (opErr != nil) || (f.lastErr != nil && opErr != nil && f.lastErr.Error() != opErr.Error())
	if f.known && f.detail == detail && !errorChanged {
		f.stateMu.Unlock()
		logging.Debug(subsystem, "State for %s is unchanged (%s), not reporting", f.address, detail)
		return
	}
	previous := f.detail
	f.detail, f.lastErr, f.known = detail, opErr, true
	f.stateMu.Unlock()

	logging.Debug(subsystem, "Scene %s: %s -> %s (error: %v)", f.address, previous, detail, opErr)
	if f.updateFn != nil {
		f.updateFn(detail, opErr)
	}
}

func (f *TCPForwarder) run(ctx context.Context) {
	defer close(f.done)
	f.reportIfChanged(StatusInitializing, nil)

	for {
		conn, err := f.dialer.DialContext(ctx, "tcp", f.address)
		if err != nil {
			if ctx.Err() != nil {
				f.reportIfChanged(StatusStopped, nil)
				return
			}
			err = fmt.Errorf("failed to connect to scene at %s: %w", f.address, err)
			if f.interval <= 0 {
				logging.Error(subsystem, err, "Scene connection failed, not retrying")
				f.failed.Store(true)
				f.reportIfChanged(StatusFailed, err)
				f.drain()
				return
			}
			logging.Warn(subsystem, "%v; retrying in %s", err, f.interval)
			f.reportIfChanged(StatusReconnecting, err)
			if !f.sleep(ctx) {
				f.reportIfChanged(StatusStopped, nil)
				return
			}
			continue
		}

		logging.Info(subsystem, "Connected to scene at %s", f.address)
		f.reportIfChanged(StatusConnected, nil)
		err = f.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			f.reportIfChanged(StatusStopped, nil)
			return
		}
		if f.interval <= 0 {
			logging.Error(subsystem, err, "Scene connection lost, not retrying")
			f.failed.Store(true)
			f.reportIfChanged(StatusFailed, err)
			f.drain()
			return
		}
		logging.Warn(subsystem, "Scene connection lost: %v; reconnecting in %s", err, f.interval)
		f.reportIfChanged(StatusReconnecting, err)
		if !f.sleep(ctx) {
			f.reportIfChanged(StatusStopped, nil)
			return
		}
	}
}

// pump writes queued frames to conn until the context ends or the connection breaks.
func (f *TCPForwarder) pump(ctx context.Context, conn net.Conn) error {
	broken := make(chan error, 1)
	go func() {
		// The scene never talks back; a read only returns when the peer goes away.
		_, err := io.Copy(io.Discard, conn)
		if err == nil {
			err = io.EOF
		}
		broken <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-broken:
			return fmt.Errorf("scene closed the connection: %w", err)
		case msg := <-f.queue:
			if _, err := conn.Write(msg); err != nil {
				f.dropped.Add(1)
				return fmt.Errorf("write to scene failed: %w", err)
			}
			f.sent.Add(1)
			logging.Debug(subsystem, "Forwarded %q", msg)
		}
	}
}

func (f *TCPForwarder) sleep(ctx context.Context) bool {
	timer := time.NewTimer(f.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// drain discards anything queued before the forwarder failed.
func (f *TCPForwarder) drain() {
	for {
		select {
		case <-f.queue:
			f.dropped.Add(1)
		default:
			return
		}
	}
}

// IsTerminal reports whether the forwarder will not deliver any more messages.
func IsTerminal(detail StatusDetail) bool {
	return detail == StatusStopped || detail == StatusFailed
}

var _ Forwarder = (*TCPForwarder)(nil)
