package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"rcarelay/internal/config"
	"rcarelay/pkg/logging"
)

const subsystem = "Router"

const eventQueueSize = 1024

// SceneForwarder receives unit commands framed for the scene. Send must not block.
type SceneForwarder interface {
	Send(msg []byte)
}

// Options tunes a Router.
type Options struct {
	ReadBufferSize    int
	OutboundQueueSize int
	QueueFullPolicy   config.QueueFullPolicy
}

// OptionsFromConfig derives router options from the connections section.
func OptionsFromConfig(cfg config.ConnectionConfig) Options {
	return Options{
		ReadBufferSize:    cfg.ReadBufferSize,
		OutboundQueueSize: cfg.OutboundQueueSize,
		QueueFullPolicy:   cfg.QueueFullPolicy,
	}
}

type eventKind int

const (
	eventAccepted eventKind = iota
	eventData
	eventClosed
	eventCall
)

type event struct {
	kind eventKind
	conn *Connection
	data []byte
	err  error
	fn   func()
}

// Router classifies connections and routes their commands. All registry
// mutation happens on the goroutine running Run.
type Router struct {
	opts     Options
	scene    SceneForwarder
	registry *Registry
	stats    Stats

	events  chan event
	done    chan struct{}
	runOnce sync.Once
	readers sync.WaitGroup

	// live holds every accepted connection until its reader exits, including
	// ones whose accept event the loop has not handled yet.
	liveMu  sync.Mutex
	live    map[*Connection]struct{}
	stopped bool
}

// NewRouter creates a router that forwards unit commands to scene.
func NewRouter(scene SceneForwarder, opts Options) *Router {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = config.DefaultReadBufferSize
	}
	if opts.OutboundQueueSize <= 0 {
		opts.OutboundQueueSize = config.DefaultOutboundQueueSize
	}
	if opts.QueueFullPolicy == "" {
		opts.QueueFullPolicy = config.QueueFullDrop
	}
	return &Router{
		opts:     opts,
		scene:    scene,
		registry: NewRegistry(),
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		live:     make(map[*Connection]struct{}),
	}
}

// Run processes events until ctx is cancelled, then closes every connection.
// It returns ctx.Err(). Run must be called at most once.
func (r *Router) Run(ctx context.Context) error {
	err := ErrRouterStopped
	r.runOnce.Do(func() {
		err = r.run(ctx)
	})
	return err
}

func (r *Router) run(ctx context.Context) error {
	defer close(r.done)
	defer r.closeAll()

	logging.Debug(subsystem, "Router loop started")
	for {
		select {
		case <-ctx.Done():
			logging.Debug(subsystem, "Router loop stopping: %v", ctx.Err())
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// Done is closed once Run has returned and every connection is closed.
func (r *Router) Done() <-chan struct{} { return r.done }

func (r *Router) closeAll() {
	for _, c := range r.registry.All() {
		r.registry.Remove(c)
		c.Close()
	}

	r.liveMu.Lock()
	r.stopped = true
	pending := make([]*Connection, 0, len(r.live))
	for c := range r.live {
		pending = append(pending, c)
	}
	r.liveMu.Unlock()
	for _, c := range pending {
		c.Close()
	}
}

// track records c as live. It reports false once the loop has shut down.
func (r *Router) track(c *Connection) bool {
	r.liveMu.Lock()
	defer r.liveMu.Unlock()
	if r.stopped {
		return false
	}
	r.live[c] = struct{}{}
	r.readers.Add(1)
	return true
}

func (r *Router) untrack(c *Connection) {
	r.liveMu.Lock()
	delete(r.live, c)
	r.liveMu.Unlock()
	r.readers.Done()
}

// post hands an event to the loop. It reports false once the loop has exited.
func (r *Router) post(ev event) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Accept takes ownership of an accepted transport, registers it as waiting
// and starts reading from it.
func (r *Router) Accept(transport net.Conn) *Connection {
	c := newConnection(transport, r.opts.OutboundQueueSize)
	if !r.track(c) {
		c.Close()
		return nil
	}
	if !r.post(event{kind: eventAccepted, conn: c}) {
		c.Close()
		r.untrack(c)
		return nil
	}
	go r.readLoop(c)
	return c
}

func (r *Router) readLoop(c *Connection) {
	defer r.untrack(c)
	buf := make([]byte, r.opts.ReadBufferSize)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !r.post(event{kind: eventData, conn: c, data: data}) {
				return
			}
		}
		if err != nil {
			c.markDisconnected()
			r.post(event{kind: eventClosed, conn: c, err: err})
			return
		}
	}
}

func (r *Router) handle(ev event) {
	switch ev.kind {
	case eventAccepted:
		r.registry.Add(ev.conn)
		r.stats.Accepted.Add(1)
		logging.Info(subsystem, "Accepted connection %s", ev.conn)
	case eventData:
		r.handlePayload(ev.conn, ev.data)
	case eventClosed:
		r.handleDisconnect(ev.conn, ev.err)
	case eventCall:
		ev.fn()
	}
}

// handlePayload classifies one read and dispatches its fragments in order.
func (r *Router) handlePayload(c *Connection, data []byte) {
	start := time.Now()
	defer func() {
		logging.Debug(subsystem, "Handled %d bytes from %s in %s", len(data), c, time.Since(start))
	}()

	if IsHandshake(data) {
		if err := r.handleHandshake(c, data[0]); err != nil {
			r.stats.HandshakesRejected.Add(1)
			logging.Warn(subsystem, "Handshake %q from %s (%s): %v", data[0], c, c.identity, err)
		}
		return
	}

	fromPlanner := c.identity.IsPlanner()
	for _, fragment := range SplitBatch(data) {
		var err error
		if fromPlanner {
			err = r.handlePlannerCommand(fragment)
		} else {
			err = r.handleUnitCommand(fragment)
		}
		if err != nil {
			r.countError(err)
			logging.Warn(subsystem, "Dropped command %q from %s (%s): %v", fragment, c, c.identity, err)
		}
	}
}

func (r *Router) countError(err error) {
	switch {
	case errors.Is(err, ErrMalformedCommand):
		r.stats.Malformed.Add(1)
	case errors.Is(err, ErrUnknownTarget):
		r.stats.UnknownTarget.Add(1)
	case errors.Is(err, ErrQueueFull):
		r.stats.QueueFull.Add(1)
	}
}

// handleHandshake applies a one-byte handshake from c.
func (r *Router) handleHandshake(c *Connection, name byte) error {
	switch {
	case c.identity.IsPlanner():
		if name == PlannerHandshake {
			logging.Debug(subsystem, "Planner %s repeated its handshake", c)
			return nil
		}
		return fmt.Errorf("%w: invalid handshake from the planner", ErrHandshakeRejected)
	case c.identity.IsUnit():
		return fmt.Errorf("%w: connection already identified as %s", ErrHandshakeRejected, c.identity)
	}

	if name == PlannerHandshake {
		if current := r.registry.Planner(); current != nil {
			if current.IsConnected() {
				return fmt.Errorf("%w: planner %s is still connected", ErrHandshakeRejected, current)
			}
			logging.Info(subsystem, "Disposing stale planner %s", current)
			r.dispose(current)
		}
		r.registry.SetPlanner(c)
		r.stats.Handshakes.Add(1)
		logging.Info(subsystem, "Connection %s identified as planner", c)
		return nil
	}

	unit := string([]byte{name})
	if current := r.registry.Unit(unit); current != nil {
		if current.IsConnected() {
			return fmt.Errorf("%w: unit %q is still held by %s", ErrHandshakeRejected, unit, current)
		}
		logging.Info(subsystem, "Disposing stale unit %q connection %s", unit, current)
		r.dispose(current)
	}
	r.registry.SetUnit(unit, c)
	r.stats.Handshakes.Add(1)
	logging.Info(subsystem, "Connection %s identified as unit %q", c, unit)
	return nil
}

// handlePlannerCommand delivers one planner fragment.
func (r *Router) handlePlannerCommand(cmd []byte) error {
	r.stats.PlannerCommands.Add(1)

	if IsShutdown(cmd) {
		released := r.registry.ReleaseUnits()
		r.stats.Broadcasts.Add(1)
		logging.Info(subsystem, "Broadcasting shutdown to %d units", len(released))
		for _, c := range released {
			if err := r.write(c, ShutdownToken); err != nil {
				r.countError(err)
				logging.Warn(subsystem, "Shutdown to %s not delivered: %v", c, err)
			}
		}
		return nil
	}

	target, payload, err := ParseCommand(cmd)
	if err != nil {
		return err
	}
	unit := r.registry.Unit(target)
	if unit == nil {
		return fmt.Errorf("%w: no unit registered as %q", ErrUnknownTarget, target)
	}
	logging.Debug(subsystem, "Planner -> unit %q: %q", target, payload)
	return r.write(unit, payload)
}

// handleUnitCommand forwards one fragment from a non-planner connection to the scene.
func (r *Router) handleUnitCommand(cmd []byte) error {
	r.stats.UnitCommands.Add(1)

	name, payload, err := ParseCommand(cmd)
	if err != nil {
		return err
	}
	if r.scene == nil {
		return errors.New("no scene forwarder configured")
	}
	r.scene.Send(SceneFrame(name, payload))
	r.stats.SceneForwards.Add(1)
	return nil
}

// write queues p on c and applies the queue-full policy.
func (r *Router) write(c *Connection, p []byte) error {
	err := c.Send(p)
	if err == nil {
		r.stats.UnitWrites.Add(1)
		return nil
	}
	if errors.Is(err, ErrQueueFull) && r.opts.QueueFullPolicy == config.QueueFullDisconnect {
		logging.Warn(subsystem, "Disconnecting %s: outbound queue full", c)
		r.dispose(c)
	}
	return err
}

// dispose forgets c and releases its transport.
func (r *Router) dispose(c *Connection) {
	if r.registry.Remove(c) {
		r.stats.Disconnected.Add(1)
	}
	c.Close()
}

func (r *Router) handleDisconnect(c *Connection, cause error) {
	identity := c.identity
	if r.registry.Remove(c) {
		r.stats.Disconnected.Add(1)
		logging.Info(subsystem, "Connection %s (%s) disconnected: %v", c, identity, cause)
	}
	c.Close()
}

// call runs fn on the loop and waits for it to finish.
func (r *Router) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ev := event{kind: eventCall, fn: func() {
		defer close(finished)
		fn()
	}}
	select {
	case <-r.done:
		return ErrRouterStopped
	default:
	}
	select {
	case r.events <- ev:
	case <-r.done:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the registry taken on the loop.
func (r *Router) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := r.call(ctx, func() { s = r.registry.Snapshot() })
	return s, err
}

// DispatchPlannerBatch runs a '|' separated batch through the planner command
// path, as if the planner had sent it. Per-fragment errors are joined.
func (r *Router) DispatchPlannerBatch(ctx context.Context, batch []byte) error {
	var errs []error
	err := r.call(ctx, func() {
		for _, fragment := range SplitBatch(batch) {
			if err := r.handlePlannerCommand(fragment); err != nil {
				r.countError(err)
				errs = append(errs, err)
			}
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Stats returns a copy of the activity counters.
func (r *Router) Stats() StatsSnapshot { return r.stats.Snapshot() }

// Wait blocks until every reader goroutine has exited. Call it after Run returns.
func (r *Router) Wait() { r.readers.Wait() }
