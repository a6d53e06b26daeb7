package sceneforward

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
	"rcarelay/internal/scene"
	"rcarelay/internal/services"
)

func sceneConfig(t *testing.T, addr string, interval time.Duration) config.SceneConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.SceneConfig{Host: host, Port: port, ReconnectInterval: interval, QueueSize: 8}
}

func TestSceneForwarderService_Lifecycle(t *testing.T) {
	srv, err := scene.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	go srv.Serve(context.Background())
	defer srv.Close()

	svc := NewSceneForwarderService(sceneConfig(t, srv.Addr().String(), 50*time.Millisecond))
	assert.Equal(t, Label, svc.GetLabel())
	assert.Equal(t, services.TypeSceneForwarder, svc.GetType())
	assert.Empty(t, svc.GetDependencies())

	var mu sync.Mutex
	var states []services.ServiceState
	svc.SetStateChangeCallback(func(_ string, _, newState services.ServiceState, _ services.HealthStatus, _ error) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, newState)
	})

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return svc.GetState() == services.StateRunning }, 3*time.Second, 10*time.Millisecond)

	health, err := svc.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.HealthHealthy, health)

	svc.Send([]byte("{t : x}"))
	require.Eventually(t, func() bool { return len(srv.Frames()) == 1 }, 3*time.Second, 10*time.Millisecond)

	data := svc.GetServiceData()
	assert.Equal(t, "Connected", data["status"])
	assert.EqualValues(t, 1, data["sent"])

	require.NoError(t, svc.Stop(context.Background()))
	assert.Equal(t, services.StateStopped, svc.GetState())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, services.StateRunning)
}

func TestSceneForwarderService_UnreachableSceneDoesNotFailStart(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	svc := NewSceneForwarderService(sceneConfig(t, addr, 0))
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(context.Background())

	require.Eventually(t, func() bool { return svc.GetState() == services.StateFailed }, 3*time.Second, 10*time.Millisecond)
	assert.Error(t, svc.GetLastError())

	health, err := svc.CheckHealth(context.Background())
	assert.Error(t, err)
	assert.Equal(t, services.HealthUnhealthy, health)
}
