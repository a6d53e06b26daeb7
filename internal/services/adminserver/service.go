// Package adminserver runs the MCP admin endpoint as a managed service.
package adminserver

import (
	"context"
	"fmt"

	"rcarelay/internal/admin"
	"rcarelay/internal/config"
	"rcarelay/internal/services"
	"rcarelay/pkg/logging"
)

// Label identifies the admin service.
const Label = "admin"

// AdminService implements the Service interface for the MCP admin endpoint
type AdminService struct {
	*services.BaseService

	config config.AdminConfig
	server *admin.Server
}

// NewAdminService wraps an admin server. deps lists the services that must
// be running first.
func NewAdminService(cfg config.AdminConfig, server *admin.Server, deps ...string) *AdminService {
	return &AdminService{
		BaseService: services.NewBaseService(Label, services.TypeAdmin, deps),
		config:      cfg,
		server:      server,
	}
}

// Start binds the admin endpoint.
func (s *AdminService) Start(ctx context.Context) error {
	if s.GetState() == services.StateRunning {
		return nil
	}
	s.UpdateState(services.StateStarting, services.HealthUnknown, nil)
	if err := s.server.Start(ctx); err != nil {
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		return fmt.Errorf("failed to start admin endpoint: %w", err)
	}
	s.UpdateState(services.StateRunning, services.HealthHealthy, nil)
	logging.Debug("AdminService", "Admin endpoint running on %s", s.server.Addr())
	return nil
}

// Stop shuts the endpoint down.
func (s *AdminService) Stop(ctx context.Context) error {
	s.UpdateState(services.StateStopping, s.GetHealth(), nil)
	if err := s.server.Stop(ctx); err != nil {
		s.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
		return err
	}
	s.UpdateState(services.StateStopped, services.HealthUnknown, nil)
	return nil
}

// GetServiceData implements ServiceDataProvider
func (s *AdminService) GetServiceData() map[string]interface{} {
	data := map[string]interface{}{
		"configured": s.config.Address(),
	}
	if addr := s.server.Addr(); addr != nil {
		data["address"] = addr.String()
		data["sse"] = "http://" + addr.String() + "/sse"
	}
	return data
}
