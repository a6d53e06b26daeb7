package scene

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcarelay/internal/config"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type statusRecorder struct {
	mu      sync.Mutex
	details []StatusDetail
}

func (r *statusRecorder) update(detail StatusDetail, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details = append(r.details, detail)
}

func (r *statusRecorder) seen() []StatusDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusDetail(nil), r.details...)
}

func startServer(t *testing.T, addr string) *Server {
	t.Helper()
	srv, err := Listen(addr, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return srv
}

func sceneConfigFor(t *testing.T, addr net.Addr, interval time.Duration) config.SceneConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.SceneConfig{Host: host, Port: port, ReconnectInterval: interval, QueueSize: 16}
}

// freeAddr returns a loopback address with nothing listening on it.
func freeAddr(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr()
	require.NoError(t, ln.Close())
	return addr
}

func TestSplitFrames(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantFrames []string
		wantRest   string
	}{
		{name: "single", in: "{t : go}", wantFrames: []string{"{t : go}"}},
		{name: "back to back", in: "{a : 1}{b : 2}", wantFrames: []string{"{a : 1}", "{b : 2}"}},
		{name: "partial tail", in: "{a : 1}{b : ", wantFrames: []string{"{a : 1}"}, wantRest: "{b : "},
		{name: "noise discarded", in: "xx{a : 1}yy", wantFrames: []string{"{a : 1}"}},
		{name: "empty", in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, rest := SplitFrames([]byte(tt.in))
			var got []string
			for _, f := range frames {
				got = append(got, string(f))
			}
			assert.Equal(t, tt.wantFrames, got)
			assert.Equal(t, tt.wantRest, string(rest))
		})
	}
}

func TestSplitFrames_Reassembles(t *testing.T) {
	frames, rest := SplitFrames([]byte("{t : pa"))
	assert.Empty(t, frames)
	frames, rest = SplitFrames(append(rest, []byte("rt two}")...))
	require.Len(t, frames, 1)
	assert.Equal(t, "{t : part two}", string(frames[0]))
	assert.Empty(t, rest)
}

func TestForwarder_DeliversInOrder(t *testing.T) {
	srv := startServer(t, "127.0.0.1:0")
	rec := &statusRecorder{}
	fwd := NewTCPForwarder(sceneConfigFor(t, srv.Addr(), 50*time.Millisecond), rec.update)
	fwd.Start(context.Background())
	t.Cleanup(fwd.Stop)

	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusConnected }, waitFor, tick)
	fwd.Send([]byte("{a : 1}"))
	fwd.Send([]byte("{b : 2}"))
	fwd.Send([]byte("{a : 3}"))

	require.Eventually(t, func() bool { return len(srv.Frames()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{"{a : 1}", "{b : 2}", "{a : 3}"}, srv.Frames())
	assert.EqualValues(t, 3, fwd.Status().Sent)
	assert.Equal(t, []StatusDetail{StatusInitializing, StatusConnected}, rec.seen())
}

func TestForwarder_QueuesUntilSceneAppears(t *testing.T) {
	addr := freeAddr(t)
	rec := &statusRecorder{}
	fwd := NewTCPForwarder(sceneConfigFor(t, addr, 20*time.Millisecond), rec.update)
	fwd.Start(context.Background())
	t.Cleanup(fwd.Stop)

	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusReconnecting }, waitFor, tick)
	fwd.Send([]byte("{t : early}"))

	srv := startServer(t, addr.String())
	require.Eventually(t, func() bool { return len(srv.Frames()) == 1 }, waitFor, tick)
	assert.Equal(t, "{t : early}", srv.Frames()[0])

	seen := rec.seen()
	assert.Contains(t, seen, StatusReconnecting)
	assert.Equal(t, StatusConnected, seen[len(seen)-1])
}

func TestForwarder_SingleAttemptFails(t *testing.T) {
	rec := &statusRecorder{}
	fwd := NewTCPForwarder(sceneConfigFor(t, freeAddr(t), 0), rec.update)
	fwd.Start(context.Background())
	t.Cleanup(fwd.Stop)

	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusFailed }, waitFor, tick)
	fwd.Send([]byte("{t : lost}"))

	status := fwd.Status()
	assert.EqualValues(t, 1, status.Dropped)
	assert.NotEmpty(t, status.Error)
	assert.True(t, IsTerminal(status.Detail))
}

func TestForwarder_QueueFullDrops(t *testing.T) {
	cfg := config.SceneConfig{Host: "127.0.0.1", Port: 1, QueueSize: 2}
	fwd := NewTCPForwarder(cfg, nil)
	// Not started: nothing drains the queue.
	fwd.Send([]byte("1"))
	fwd.Send([]byte("2"))
	fwd.Send([]byte("3"))

	status := fwd.Status()
	assert.Equal(t, 2, status.Queued)
	assert.EqualValues(t, 1, status.Dropped)
	fwd.Stop()
}

func TestForwarder_ReconnectsAfterSceneRestart(t *testing.T) {
	addr := freeAddr(t)
	first, err := Listen(addr.String(), nil)
	require.NoError(t, err)
	firstDone := make(chan error, 1)
	go func() { firstDone <- first.Serve(context.Background()) }()

	fwd := NewTCPForwarder(sceneConfigFor(t, addr, 20*time.Millisecond), nil)
	fwd.Start(context.Background())
	t.Cleanup(fwd.Stop)

	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusConnected }, waitFor, tick)
	require.NoError(t, first.Close())
	require.NoError(t, <-firstDone)
	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusReconnecting }, waitFor, tick)

	second := startServer(t, addr.String())
	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusConnected }, waitFor, tick)
	fwd.Send([]byte("{t : back}"))
	require.Eventually(t, func() bool { return len(second.Frames()) == 1 }, waitFor, tick)
}

func TestForwarder_StopReportsStopped(t *testing.T) {
	srv := startServer(t, "127.0.0.1:0")
	rec := &statusRecorder{}
	fwd := NewTCPForwarder(sceneConfigFor(t, srv.Addr(), time.Second), rec.update)
	fwd.Start(context.Background())
	require.Eventually(t, func() bool { return fwd.Status().Detail == StatusConnected }, waitFor, tick)

	fwd.Stop()
	assert.Equal(t, StatusStopped, fwd.Status().Detail)
	fwd.Stop()
}

func TestServer_OnFrameCallback(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv, err := Listen("127.0.0.1:0", func(_ string, frame string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, frame)
	})
	require.NoError(t, err)
	go srv.Serve(context.Background())
	t.Cleanup(func() { srv.Close() })

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("{a : 1}{b : "))
	require.NoError(t, err)
	_, err = conn.Write([]byte("2}"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"{a : 1}", "{b : 2}"}, srv.Frames())

	srv.Reset()
	assert.Empty(t, srv.Frames())
}
