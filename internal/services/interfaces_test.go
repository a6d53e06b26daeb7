package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateChange struct {
	label    string
	old, new ServiceState
	health   HealthStatus
	err      error
}

func TestBaseService_Metadata(t *testing.T) {
	deps := []string{"scene-forwarder"}
	b := NewBaseService("relay", TypeRelay, deps)

	assert.Equal(t, "relay", b.GetLabel())
	assert.Equal(t, TypeRelay, b.GetType())
	assert.Equal(t, deps, b.GetDependencies())
	assert.Equal(t, StateUnknown, b.GetState())
	assert.Equal(t, HealthUnknown, b.GetHealth())
	assert.NoError(t, b.GetLastError())

	got := b.GetDependencies()
	got[0] = "changed"
	assert.Equal(t, "scene-forwarder", b.GetDependencies()[0])
}

func TestBaseService_UpdateStateNotifies(t *testing.T) {
	b := NewBaseService("relay", TypeRelay, nil)
	var changes []stateChange
	b.SetStateChangeCallback(func(label string, oldState, newState ServiceState, health HealthStatus, err error) {
		changes = append(changes, stateChange{label, oldState, newState, health, err})
	})

	b.UpdateState(StateStarting, HealthChecking, nil)
	b.UpdateState(StateRunning, HealthHealthy, nil)
	b.UpdateState(StateRunning, HealthHealthy, nil)

	require.Len(t, changes, 2, "identical updates are not reported")
	assert.Equal(t, stateChange{"relay", StateUnknown, StateStarting, HealthChecking, nil}, changes[0])
	assert.Equal(t, stateChange{"relay", StateStarting, StateRunning, HealthHealthy, nil}, changes[1])
}

func TestBaseService_ErrorChangeIsReported(t *testing.T) {
	b := NewBaseService("scene-forwarder", TypeSceneForwarder, nil)
	calls := 0
	b.SetStateChangeCallback(func(string, ServiceState, ServiceState, HealthStatus, error) { calls++ })

	b.UpdateState(StateRetrying, HealthUnhealthy, errors.New("refused"))
	b.UpdateState(StateRetrying, HealthUnhealthy, errors.New("refused"))
	b.UpdateState(StateRetrying, HealthUnhealthy, errors.New("timeout"))

	assert.Equal(t, 2, calls)
	assert.EqualError(t, b.GetLastError(), "timeout")
}

func TestBaseService_UpdateHealth(t *testing.T) {
	b := NewBaseService("admin", TypeAdmin, nil)
	b.UpdateState(StateRunning, HealthChecking, nil)
	b.UpdateHealth(HealthHealthy)

	assert.Equal(t, StateRunning, b.GetState())
	assert.Equal(t, HealthHealthy, b.GetHealth())
}

func TestServiceStateConstants(t *testing.T) {
	states := map[ServiceState]string{
		StateUnknown:  "Unknown",
		StateStarting: "Starting",
		StateRunning:  "Running",
		StateStopping: "Stopping",
		StateStopped:  "Stopped",
		StateFailed:   "Failed",
		StateRetrying: "Retrying",
	}
	for state, expected := range states {
		assert.Equal(t, expected, string(state))
	}
}
