// Package sceneforward runs the scene forwarder as a managed service.
package sceneforward

import (
	"context"
	"fmt"
	"time"

	"rcarelay/internal/config"
	"rcarelay/internal/scene"
	"rcarelay/internal/services"
	"rcarelay/pkg/logging"
)

// Label identifies the scene forwarder service.
const Label = "scene-forwarder"

// SceneForwarderService implements the Service interface for the outbound scene connection
type SceneForwarderService struct {
	*services.BaseService

	config    config.SceneConfig
	forwarder *scene.TCPForwarder
}

// NewSceneForwarderService creates the service. The forwarder exists from
// construction so the relay can be wired to it before Start.
func NewSceneForwarderService(cfg config.SceneConfig) *SceneForwarderService {
	s := &SceneForwarderService{
		BaseService: services.NewBaseService(Label, services.TypeSceneForwarder, nil),
		config:      cfg,
	}
	s.forwarder = scene.NewTCPForwarder(cfg, s.onStatus)
	return s
}

// Forwarder returns the underlying forwarder.
func (s *SceneForwarderService) Forwarder() *scene.TCPForwarder { return s.forwarder }

// Send implements scene.Forwarder.
func (s *SceneForwarderService) Send(msg []byte) { s.forwarder.Send(msg) }

// Start begins dialing the scene. An unreachable scene does not fail Start;
// the relay keeps routing planner traffic while the forwarder retries.
func (s *SceneForwarderService) Start(ctx context.Context) error {
	if s.GetState() == services.StateRunning {
		return nil
	}
	s.UpdateState(services.StateStarting, services.HealthUnknown, nil)
	logging.Debug("SceneForwarderService", "Starting scene forwarder for %s", s.config.Address())
	// The forwarder outlives the start context.
	s.forwarder.Start(context.WithoutCancel(ctx))
	return nil
}

// Stop closes the scene connection.
func (s *SceneForwarderService) Stop(ctx context.Context) error {
	s.UpdateState(services.StateStopping, s.GetHealth(), nil)
	s.forwarder.Stop()
	s.UpdateState(services.StateStopped, services.HealthUnknown, nil)
	return nil
}

// onStatus maps forwarder transitions onto service state.
func (s *SceneForwarderService) onStatus(detail scene.StatusDetail, err error) {
	switch detail {
	case scene.StatusInitializing:
		s.UpdateState(services.StateStarting, services.HealthChecking, nil)
	case scene.StatusConnected:
		s.UpdateState(services.StateRunning, services.HealthHealthy, nil)
	case scene.StatusReconnecting:
		s.UpdateState(services.StateRetrying, services.HealthUnhealthy, err)
	case scene.StatusFailed:
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
	case scene.StatusStopped:
		// Stop reports the final state itself.
	default:
		logging.Warn("SceneForwarderService", "Unknown scene status %q", detail)
	}
}

// GetServiceData implements ServiceDataProvider
func (s *SceneForwarderService) GetServiceData() map[string]interface{} {
	st := s.forwarder.Status()
	data := map[string]interface{}{
		"address": st.Address,
		"status":  string(st.Detail),
		"sent":    st.Sent,
		"dropped": st.Dropped,
		"queued":  st.Queued,
	}
	if st.Error != "" {
		data["error"] = st.Error
	}
	return data
}

// CheckHealth implements HealthChecker
func (s *SceneForwarderService) CheckHealth(ctx context.Context) (services.HealthStatus, error) {
	st := s.forwarder.Status()
	var health services.HealthStatus
	var err error
	switch {
	case st.Detail.IsReady():
		health = services.HealthHealthy
	case st.Detail == scene.StatusInitializing:
		health = services.HealthChecking
	case st.Detail == scene.StatusStopped:
		health = services.HealthUnknown
	default:
		health = services.HealthUnhealthy
		err = fmt.Errorf("scene %s is %s: %s", st.Address, st.Detail, st.Error)
	}
	s.UpdateHealth(health)
	return health, err
}

// GetHealthCheckInterval implements HealthChecker
func (s *SceneForwarderService) GetHealthCheckInterval() time.Duration {
	return 10 * time.Second
}
