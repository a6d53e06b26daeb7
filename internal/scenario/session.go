package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"rcarelay/internal/client"
)

const (
	// DefaultStepTimeout bounds expect and wait steps without a timeout.
	DefaultStepTimeout = 2 * time.Second
	// DefaultQuietPeriod is how long expect_none listens without a timeout.
	DefaultQuietPeriod = 200 * time.Millisecond
	// externalSettle replaces wait_registered when the relay cannot be inspected.
	externalSettle = 200 * time.Millisecond
	pollInterval   = 10 * time.Millisecond
)

// errSkipped marks a step that cannot run against this instance.
var errSkipped = errors.New("skipped")

// peer is one client connection plus everything it has received and not yet
// matched by an expect step. TCP may split or merge payloads, so expectations
// match against the byte stream, not against individual reads.
type peer struct {
	client *client.Client

	mu     sync.Mutex
	buf    string
	notify chan struct{}
	// done is closed once every received payload is in buf.
	done chan struct{}
}

func newPeer(c *client.Client) *peer {
	p := &peer{client: c, notify: make(chan struct{}, 1), done: make(chan struct{})}
	go p.pump()
	return p
}

func (p *peer) pump() {
	defer close(p.done)
	for msg := range p.client.Incoming() {
		p.mu.Lock()
		p.buf += msg
		p.mu.Unlock()
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}
}

func (p *peer) pending() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf
}

// consume removes want from the front of the buffer. It reports a mismatch
// as soon as the buffered bytes can no longer become want.
func (p *peer) consume(want string) (matched bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(p.buf, want) {
		p.buf = p.buf[len(want):]
		return true, nil
	}
	if !strings.HasPrefix(want, p.buf) {
		return false, fmt.Errorf("received %q, want %q", p.buf, want)
	}
	return false, nil
}

// session holds the connections of one scenario run.
type session struct {
	inst      *Instance
	peers     map[string]*peer
	sceneSeen int
}

func newSession(inst *Instance) *session {
	return &session{inst: inst, peers: make(map[string]*peer)}
}

func (s *session) close() {
	for name, p := range s.peers {
		p.client.Close()
		delete(s.peers, name)
	}
}

func (s *session) peer(name string) (*peer, error) {
	p, ok := s.peers[name]
	if !ok {
		return nil, fmt.Errorf("no connection named %q", name)
	}
	return p, nil
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// execute runs one step.
func (s *session) execute(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionConnect:
		return s.connect(ctx, step)
	case ActionSend:
		p, err := s.peer(step.Client)
		if err != nil {
			return err
		}
		return p.client.SendRaw([]byte(step.Data))
	case ActionExpect:
		return s.expect(ctx, step)
	case ActionExpectNone:
		return s.expectNone(ctx, step)
	case ActionExpectClosed:
		return s.expectClosed(ctx, step)
	case ActionExpectScene:
		return s.expectScene(ctx, step)
	case ActionDisconnect:
		p, err := s.peer(step.Client)
		if err != nil {
			return err
		}
		delete(s.peers, step.Client)
		return p.client.Close()
	case ActionWaitRegistered:
		return s.waitRegistered(ctx, step)
	case ActionSleep:
		return sleep(ctx, step.Duration)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (s *session) connect(ctx context.Context, step Step) error {
	if _, exists := s.peers[step.Client]; exists {
		return fmt.Errorf("connection %q already exists", step.Client)
	}
	c, err := client.Dial(ctx, s.inst.RelayAddr, step.handshake(), client.Options{
		CloseOnShutdown: step.CloseOnShutdown,
	})
	if err != nil {
		return err
	}
	s.peers[step.Client] = newPeer(c)
	return nil
}

func (s *session) expect(ctx context.Context, step Step) error {
	p, err := s.peer(step.Client)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeoutOr(step.Timeout, DefaultStepTimeout))
	defer cancel()
	for {
		matched, err := p.consume(step.Data)
		if err != nil || matched {
			return err
		}
		select {
		case <-p.notify:
		case <-p.done:
			// Drain whatever arrived with the close.
			if matched, err := p.consume(step.Data); err != nil || matched {
				return err
			}
			return fmt.Errorf("connection closed before %q arrived (received %q)", step.Data, p.pending())
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %q (received %q)", step.Data, p.pending())
		}
	}
}

func (s *session) expectNone(ctx context.Context, step Step) error {
	p, err := s.peer(step.Client)
	if err != nil {
		return err
	}
	if err := sleep(ctx, timeoutOr(step.Timeout, DefaultQuietPeriod)); err != nil {
		return err
	}
	if got := p.pending(); got != "" {
		return fmt.Errorf("expected nothing, received %q", got)
	}
	return nil
}

func (s *session) expectClosed(ctx context.Context, step Step) error {
	p, err := s.peer(step.Client)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(timeoutOr(step.Timeout, DefaultStepTimeout)):
		return errors.New("connection is still open")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) expectScene(ctx context.Context, step Step) error {
	deadline := time.Now().Add(timeoutOr(step.Timeout, DefaultStepTimeout))
	for {
		frames, err := s.inst.SceneFrames()
		if errors.Is(err, ErrNotInspectable) {
			return errSkipped
		}
		if err != nil {
			return err
		}
		if idx := slices.Index(frames[s.sceneSeen:], step.Data); idx >= 0 {
			s.sceneSeen += idx + 1
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scene did not receive %q (received %q)", step.Data, frames[s.sceneSeen:])
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (s *session) waitRegistered(ctx context.Context, step Step) error {
	if s.inst.External() {
		// Registration is not observable from outside; give the relay a moment.
		if err := sleep(ctx, externalSettle); err != nil {
			return err
		}
		return errSkipped
	}
	deadline := time.Now().Add(timeoutOr(step.Timeout, DefaultStepTimeout))
	for {
		mismatch, err := s.registryMismatch(ctx, step)
		if err != nil {
			return err
		}
		if mismatch == "" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("registry never matched: %s", mismatch)
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// registryMismatch describes the first difference between the registry and
// the step, or returns "" when they agree.
func (s *session) registryMismatch(ctx context.Context, step Step) (string, error) {
	snap, err := s.inst.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	for _, name := range step.Units {
		if _, ok := snap.Units[name]; !ok {
			return fmt.Sprintf("unit %q not registered", name), nil
		}
	}
	if step.Units != nil && len(snap.Units) != len(step.Units) {
		return fmt.Sprintf("%d units registered, want %d", len(snap.Units), len(step.Units)), nil
	}
	if step.Planner != nil && (snap.Planner != nil) != *step.Planner {
		return fmt.Sprintf("planner registered = %t, want %t", snap.Planner != nil, *step.Planner), nil
	}
	if step.Waiting != nil && len(snap.Waiting) != *step.Waiting {
		return fmt.Sprintf("%d waiting connections, want %d", len(snap.Waiting), *step.Waiting), nil
	}
	return "", nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
