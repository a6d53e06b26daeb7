package orchestrator

import (
	"context"
	"sync"
	"time"

	"rcarelay/internal/services"
)

// mockService is a mock implementation of services.Service for testing
type mockService struct {
	*services.BaseService

	// Function hooks for testing
	startFunc func(ctx context.Context) error
	stopFunc  func(ctx context.Context) error

	// calls records lifecycle calls into a log shared across mocks
	calls *callLog
}

type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func newMockService(label string, log *callLog, deps ...string) *mockService {
	return &mockService{
		BaseService: services.NewBaseService(label, services.ServiceType("Mock"), deps),
		calls:       log,
	}
}

func (m *mockService) Start(ctx context.Context) error {
	m.calls.add("start " + m.GetLabel())
	if m.startFunc != nil {
		if err := m.startFunc(ctx); err != nil {
			m.UpdateState(services.StateFailed, services.HealthUnhealthy, err)
			return err
		}
	}
	m.UpdateState(services.StateRunning, services.HealthHealthy, nil)
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	m.calls.add("stop " + m.GetLabel())
	if m.stopFunc != nil {
		if err := m.stopFunc(ctx); err != nil {
			return err
		}
	}
	m.UpdateState(services.StateStopped, services.HealthUnknown, nil)
	return nil
}

// mockHealthService adds services.HealthChecker to mockService.
type mockHealthService struct {
	*mockService

	mu     sync.Mutex
	checks int
	health services.HealthStatus
}

func (m *mockHealthService) CheckHealth(ctx context.Context) (services.HealthStatus, error) {
	m.mu.Lock()
	m.checks++
	health := m.health
	m.mu.Unlock()
	m.UpdateHealth(health)
	return health, nil
}

func (m *mockHealthService) GetHealthCheckInterval() time.Duration { return 10 * time.Millisecond }

func (m *mockHealthService) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}
