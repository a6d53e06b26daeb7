package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"rcarelay/pkg/logging"
)

// Listener accepts relay connections and hands them to a Router.
type Listener struct {
	ln     net.Listener
	router *Router
}

// Listen binds addr. Binding failures are returned unretried.
func Listen(addr string, router *Router) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind relay listener on %s: %w", addr, err)
	}
	logging.Info("Listener", "Relay listening on %s", ln.Addr())
	return &Listener{ln: ln, router: router}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the listener is closed.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logging.Warn("Listener", "Temporary accept failure: %v", err)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		if l.router.Accept(nc) == nil {
			// Router has stopped.
			return nil
		}
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
