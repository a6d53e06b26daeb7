package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcarelay/internal/relay"
)

const waitFor = 2 * time.Second

type sceneSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *sceneSink) Send(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(msg))
}

func (s *sceneSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func startRelay(t *testing.T) (string, *relay.Router, *sceneSink) {
	t.Helper()
	sink := &sceneSink{}
	router := relay.NewRouter(sink, relay.Options{})
	ln, err := relay.Listen("127.0.0.1:0", router)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go router.Run(ctx)
	go ln.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		<-router.Done()
	})
	return ln.Addr().String(), router, sink
}

func waitRegistered(t *testing.T, router *relay.Router, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := router.Snapshot(context.Background())
		if err != nil {
			return false
		}
		if name == "p" {
			return s.Planner != nil
		}
		_, ok := s.Units[name]
		return ok
	}, waitFor, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg, ok := <-c.Incoming():
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for a message")
		return ""
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("p"))
	assert.NoError(t, ValidateName("t"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("tt"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("e"), ErrInvalidName)
}

func TestDial_PlannerToUnit(t *testing.T) {
	addr, router, sink := startRelay(t)
	ctx := context.Background()

	unit, err := Dial(ctx, addr, "t", Options{})
	require.NoError(t, err)
	defer unit.Close()
	waitRegistered(t, router, "t")

	planner, err := Dial(ctx, addr, "p", Options{})
	require.NoError(t, err)
	defer planner.Close()
	waitRegistered(t, router, "p")
	assert.True(t, planner.IsPlanner())
	assert.False(t, unit.IsPlanner())

	require.NoError(t, planner.Send("t:hello"))
	assert.Equal(t, "hello", receive(t, unit))

	require.NoError(t, unit.Send("t:ack"))
	require.Eventually(t, func() bool { return sink.count() == 1 }, waitFor, 5*time.Millisecond)
}

func TestDial_CloseOnShutdown(t *testing.T) {
	addr, router, _ := startRelay(t)
	ctx := context.Background()

	unit, err := Dial(ctx, addr, "t", Options{CloseOnShutdown: true})
	require.NoError(t, err)
	waitRegistered(t, router, "t")

	planner, err := Dial(ctx, addr, "p", Options{})
	require.NoError(t, err)
	defer planner.Close()
	waitRegistered(t, router, "p")

	require.NoError(t, planner.Send("e"))
	assert.Equal(t, "e", receive(t, unit))

	select {
	case <-unit.Done():
	case <-time.After(waitFor):
		t.Fatal("unit did not close after shutdown")
	}
	assert.ErrorIs(t, unit.Send("t:late"), relay.ErrConnectionClosed)

	require.Eventually(t, func() bool {
		s, err := router.Snapshot(context.Background())
		return err == nil && len(s.Units) == 0 && len(s.Waiting) == 0
	}, waitFor, 5*time.Millisecond)
}

func TestDial_InvalidName(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", "ee", Options{})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDial_NoRelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "127.0.0.1:1", "t", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to relay")
}

func TestSend_Empty(t *testing.T) {
	addr, _, _ := startRelay(t)
	c, err := Dial(context.Background(), addr, "t", Options{})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Send())
}
