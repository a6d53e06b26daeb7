// Package relayserver runs the relay listener and router as a managed service.
package relayserver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"rcarelay/internal/config"
	"rcarelay/internal/relay"
	"rcarelay/internal/services"
	"rcarelay/pkg/logging"
)

// Label identifies the relay service.
const Label = "relay"

// RelayService implements the Service interface for the relay listener and router
type RelayService struct {
	*services.BaseService

	config config.RelayConfig
	router *relay.Router

	mu       sync.RWMutex
	listener *relay.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRelayService creates the relay. Unit commands go to scene. deps lists
// the services that must be running first.
func NewRelayService(cfg config.RelayConfig, scene relay.SceneForwarder, deps ...string) *RelayService {
	return &RelayService{
		BaseService: services.NewBaseService(Label, services.TypeRelay, deps),
		config:      cfg,
		router:      relay.NewRouter(scene, relay.OptionsFromConfig(cfg.Connections)),
	}
}

// Router returns the router. It stays usable for the lifetime of the service.
func (s *RelayService) Router() *relay.Router { return s.router }

// Addr returns the bound listen address, or nil before Start.
func (s *RelayService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and starts the router loop. A bind failure is
// returned unretried.
func (s *RelayService) Start(ctx context.Context) error {
	switch s.GetState() {
	case services.StateRunning:
		return nil
	case services.StateStopped, services.StateStopping:
		// The router loop runs once.
		return fmt.Errorf("relay service %s cannot be restarted", Label)
	}
	s.UpdateState(services.StateStarting, services.HealthUnknown, nil)

	ln, err := relay.Listen(s.config.Listen.Address(), s.router)
	if err != nil {
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.router.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		if err := ln.Serve(runCtx); err != nil {
			logging.Error("RelayService", err, "Relay listener stopped")
			s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		}
	}()

	s.UpdateState(services.StateRunning, services.HealthHealthy, nil)
	logging.Info("RelayService", "Relay started on %s", ln.Addr())
	return nil
}

// Stop closes the listener and every relay connection.
func (s *RelayService) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	s.UpdateState(services.StateStopping, s.GetHealth(), nil)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.router.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err := fmt.Errorf("relay did not stop: %w", ctx.Err())
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		return err
	}

	s.UpdateState(services.StateStopped, services.HealthUnknown, nil)
	return nil
}

// GetServiceData implements ServiceDataProvider
func (s *RelayService) GetServiceData() map[string]interface{} {
	data := map[string]interface{}{
		"listen": s.config.Listen.Address(),
		"stats":  s.router.Stats(),
	}
	if addr := s.Addr(); addr != nil {
		data["address"] = addr.String()
	}
	return data
}
