package services

import "sync"

// BaseService carries the state bookkeeping shared by every service.
// Embed it and call UpdateState from the lifecycle methods.
type BaseService struct {
	mu           sync.RWMutex
	label        string
	serviceType  ServiceType
	dependencies []string
	state        ServiceState
	health       HealthStatus
	lastError    error
	callback     StateChangeCallback
}

// NewBaseService creates a base in StateUnknown.
func NewBaseService(label string, serviceType ServiceType, dependencies []string) *BaseService {
	return &BaseService{
		label:        label,
		serviceType:  serviceType,
		dependencies: dependencies,
		state:        StateUnknown,
		health:       HealthUnknown,
	}
}

func (b *BaseService) GetLabel() string { return b.label }

func (b *BaseService) GetType() ServiceType { return b.serviceType }

// GetDependencies returns a copy of the labels this service depends on.
func (b *BaseService) GetDependencies() []string {
	return append([]string(nil), b.dependencies...)
}

func (b *BaseService) GetState() ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *BaseService) GetHealth() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.health
}

func (b *BaseService) GetLastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

func (b *BaseService) SetStateChangeCallback(callback StateChangeCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = callback
}

// UpdateState records a new state and notifies the callback when state,
// health or error changed. The callback runs without the lock held.
func (b *BaseService) UpdateState(state ServiceState, health HealthStatus, err error) {
	b.mu.Lock()
	old := b.state
	changed := old != state || b.health != health || !sameError(b.lastError, err)
	b.state = state
	b.health = health
	b.lastError = err
	callback := b.callback
	b.mu.Unlock()

	if changed && callback != nil {
		callback(b.label, old, state, health, err)
	}
}

// UpdateHealth changes only the health.
func (b *BaseService) UpdateHealth(health HealthStatus) {
	b.mu.RLock()
	state, err := b.state, b.lastError
	b.mu.RUnlock()
	b.UpdateState(state, health, err)
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Error() == b.Error()
}
