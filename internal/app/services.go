package app

import (
	"rcarelay/internal/admin"
	"rcarelay/internal/config"
	"rcarelay/internal/orchestrator"
	"rcarelay/internal/services/adminserver"
	"rcarelay/internal/services/relayserver"
	"rcarelay/internal/services/sceneforward"
)

// Services holds all the initialized services
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Scene        *sceneforward.SceneForwarderService
	Relay        *relayserver.RelayService
	// Admin is nil unless admin.enabled is set
	Admin *adminserver.AdminService
}

// InitializeServices creates and registers all required services.
// Start order: scene forwarder, relay, admin.
func InitializeServices(cfg config.RelayConfig, version string) (*Services, error) {
	orch := orchestrator.New()

	sceneSvc := sceneforward.NewSceneForwarderService(cfg.Scene)
	relaySvc := relayserver.NewRelayService(cfg, sceneSvc, sceneforward.Label)

	s := &Services{
		Orchestrator: orch,
		Scene:        sceneSvc,
		Relay:        relaySvc,
	}
	if err := orch.Register(sceneSvc); err != nil {
		return nil, err
	}
	if err := orch.Register(relaySvc); err != nil {
		return nil, err
	}

	if cfg.Admin.Enabled {
		server := admin.NewServer(cfg.Admin, relaySvc.Router(), sceneSvc.Forwarder(), version)
		s.Admin = adminserver.NewAdminService(cfg.Admin, server, relayserver.Label)
		if err := orch.Register(s.Admin); err != nil {
			return nil, err
		}
	}
	return s, nil
}
