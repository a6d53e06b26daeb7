package scenario

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"rcarelay/internal/app"
	"rcarelay/internal/config"
	"rcarelay/internal/relay"
	"rcarelay/internal/scene"
	"rcarelay/pkg/logging"
)

// ErrNotInspectable is returned by Instance inspection methods when the
// relay runs outside this process.
var ErrNotInspectable = errors.New("relay instance cannot be inspected")

// Instance is the relay a scenario runs against.
type Instance struct {
	ID        string
	Scenario  string
	RelayAddr string

	services  *app.Services
	scene     *scene.Server
	cancel    context.CancelFunc
	serveDone chan struct{}
}

// External reports whether the relay runs outside this process.
func (i *Instance) External() bool { return i.services == nil }

// Snapshot returns the relay registry.
func (i *Instance) Snapshot(ctx context.Context) (relay.Snapshot, error) {
	if i.External() {
		return relay.Snapshot{}, ErrNotInspectable
	}
	return i.services.Relay.Router().Snapshot(ctx)
}

// SceneFrames returns every frame the scene stub has received.
func (i *Instance) SceneFrames() ([]string, error) {
	if i.scene == nil {
		return nil, ErrNotInspectable
	}
	return i.scene.Frames(), nil
}

// localManager starts a fresh relay and scene stub per scenario, wired the
// same way `rcarelay serve` wires them.
type localManager struct {
	reconnectInterval time.Duration
}

// NewLocalInstanceManager creates an in-process instance manager.
func NewLocalInstanceManager() InstanceManager {
	return &localManager{reconnectInterval: 50 * time.Millisecond}
}

func (m *localManager) CreateInstance(ctx context.Context, scenarioName string) (*Instance, error) {
	stub, err := scene.Listen("127.0.0.1:0", nil)
	if err != nil {
		return nil, err
	}
	sceneCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	inst := &Instance{
		ID:        uuid.NewString(),
		Scenario:  scenarioName,
		scene:     stub,
		cancel:    cancel,
		serveDone: make(chan struct{}),
	}
	go func() {
		defer close(inst.serveDone)
		if err := stub.Serve(sceneCtx); err != nil {
			logging.Error("ScenarioInstance", err, "Scene stub for %s stopped", scenarioName)
		}
	}()

	cfg := config.GetDefaultConfig()
	cfg.Listen.Host = "127.0.0.1"
	cfg.Listen.Port = 0
	cfg.Scene.Host = "127.0.0.1"
	cfg.Scene.Port = stub.Addr().(*net.TCPAddr).Port
	cfg.Scene.ReconnectInterval = m.reconnectInterval
	cfg.Admin.Enabled = false

	services, err := app.InitializeServices(cfg, "scenario")
	if err != nil {
		m.stopScene(inst)
		return nil, fmt.Errorf("failed to initialize relay: %w", err)
	}
	if err := services.Orchestrator.Start(ctx); err != nil {
		m.stopScene(inst)
		return nil, fmt.Errorf("failed to start relay: %w", err)
	}
	inst.services = services
	inst.RelayAddr = services.Relay.Addr().String()
	logging.Debug("ScenarioInstance", "Instance %s for %s: relay %s, scene %s", inst.ID, scenarioName, inst.RelayAddr, stub.Addr())
	return inst, nil
}

func (m *localManager) DestroyInstance(ctx context.Context, inst *Instance) error {
	var err error
	if inst.services != nil {
		err = inst.services.Orchestrator.Stop(ctx)
		inst.services.Orchestrator.Close()
	}
	m.stopScene(inst)
	return err
}

func (m *localManager) stopScene(inst *Instance) {
	inst.cancel()
	<-inst.serveDone
}

// externalManager points every scenario at a relay that is already running.
type externalManager struct {
	addr string
}

// NewExternalInstanceManager runs scenarios against the relay at addr. Steps
// that need to inspect the relay or the scene are skipped.
func NewExternalInstanceManager(addr string) InstanceManager {
	return externalManager{addr: addr}
}

func (m externalManager) CreateInstance(_ context.Context, scenarioName string) (*Instance, error) {
	return &Instance{ID: uuid.NewString(), Scenario: scenarioName, RelayAddr: m.addr}, nil
}

func (m externalManager) DestroyInstance(context.Context, *Instance) error { return nil }
