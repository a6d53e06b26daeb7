package relayserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcarelay/internal/config"
	"rcarelay/internal/relay"
	"rcarelay/internal/services"
)

type discardScene struct {
	mu     sync.Mutex
	frames int
}

func (d *discardScene) Send([]byte) {
	d.mu.Lock()
	d.frames++
	d.mu.Unlock()
}

func testConfig() config.RelayConfig {
	cfg := config.GetDefaultConfig()
	cfg.Listen.Host = "127.0.0.1"
	cfg.Listen.Port = 0
	return cfg
}

func TestRelayService_StartStop(t *testing.T) {
	svc := NewRelayService(testConfig(), &discardScene{}, "scene-forwarder")
	assert.Equal(t, Label, svc.GetLabel())
	assert.Equal(t, services.TypeRelay, svc.GetType())
	assert.Equal(t, []string{"scene-forwarder"}, svc.GetDependencies())
	assert.Nil(t, svc.Addr())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, services.StateRunning, svc.GetState())
	require.NotNil(t, svc.Addr())

	conn, err := net.Dial("tcp", svc.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("t"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := svc.Router().Snapshot(context.Background())
		return err == nil && len(s.Units) == 1
	}, 2*time.Second, 5*time.Millisecond)

	data := svc.GetServiceData()
	assert.Equal(t, svc.Addr().String(), data["address"])
	stats, ok := data["stats"].(relay.StatsSnapshot)
	require.True(t, ok)
	assert.EqualValues(t, 1, stats.Handshakes)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.Equal(t, services.StateStopped, svc.GetState())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 4))
	assert.Error(t, err, "relay connections are closed on stop")

	assert.Error(t, svc.Start(context.Background()))
	assert.NoError(t, svc.Stop(ctx), "second stop is a no-op")
}

func TestRelayService_BindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig()
	cfg.Listen.Port = occupied.Addr().(*net.TCPAddr).Port

	svc := NewRelayService(cfg, &discardScene{})
	err = svc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind relay listener")
	assert.Equal(t, services.StateFailed, svc.GetState())
}
