package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rcarelay/internal/services"
	"rcarelay/pkg/logging"
)

// ServiceStateChangedEvent is published to subscribers on every service state change.
type ServiceStateChangedEvent struct {
	Label       string
	ServiceType string
	OldState    string
	NewState    string
	Health      string
	Error       error
	Timestamp   time.Time
}

// ServiceStatus is a point-in-time view of one service.
type ServiceStatus struct {
	Label  string                 `json:"label"`
	Type   string                 `json:"type"`
	State  string                 `json:"state"`
	Health string                 `json:"health"`
	Error  string                 `json:"error,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Orchestrator starts registered services in dependency order, stops them in
// reverse, and runs periodic health checks for services that support them.
type Orchestrator struct {
	mu       sync.RWMutex
	services map[string]services.Service
	order    []string // registration order, used to break ties
	started  []string

	globalStateChangeCallback services.StateChangeCallback
	stateChangeSubscribers    []chan ServiceStateChangedEvent

	healthCheckers map[string]bool
	ctx            context.Context
	cancelFunc     context.CancelFunc
	wg             sync.WaitGroup
}

// New creates an empty orchestrator.
func New() *Orchestrator {
	return &Orchestrator{
		services:       make(map[string]services.Service),
		healthCheckers: make(map[string]bool),
	}
}

// Register adds a service. Labels must be unique.
func (o *Orchestrator) Register(svc services.Service) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	label := svc.GetLabel()
	if _, exists := o.services[label]; exists {
		return fmt.Errorf("service %s already registered", label)
	}
	o.services[label] = svc
	o.order = append(o.order, label)
	svc.SetStateChangeCallback(o.handleStateChange)
	logging.Debug("Orchestrator", "Registered service %s (%s)", label, svc.GetType())
	return nil
}

// GetService returns a registered service by label.
func (o *Orchestrator) GetService(label string) (services.Service, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	svc, ok := o.services[label]
	return svc, ok
}

// SetStateChangeCallback sets a callback that receives every service state change.
func (o *Orchestrator) SetStateChangeCallback(callback services.StateChangeCallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.globalStateChangeCallback = callback
}

// SubscribeToStateChanges returns a channel of state change events. Events
// are dropped for subscribers that fall behind. The channel is closed by Close.
func (o *Orchestrator) SubscribeToStateChanges() <-chan ServiceStateChangedEvent {
	ch := make(chan ServiceStateChangedEvent, 100)
	o.mu.Lock()
	o.stateChangeSubscribers = append(o.stateChangeSubscribers, ch)
	o.mu.Unlock()
	return ch
}

func (o *Orchestrator) handleStateChange(label string, oldState, newState services.ServiceState, health services.HealthStatus, err error) {
	logging.Debug("Orchestrator", "Service %s: %s -> %s (health: %s, error: %v)", label, oldState, newState, health, err)

	o.mu.RLock()
	callback := o.globalStateChangeCallback
	svc := o.services[label]
	o.mu.RUnlock()

	if callback != nil {
		callback(label, oldState, newState, health, err)
	}

	event := ServiceStateChangedEvent{
		Label:     label,
		OldState:  string(oldState),
		NewState:  string(newState),
		Health:    string(health),
		Error:     err,
		Timestamp: time.Now(),
	}
	if svc != nil {
		event.ServiceType = string(svc.GetType())
	}
	// Sends happen under the read lock so Close cannot close a channel mid-send.
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.stateChangeSubscribers {
		select {
		case ch <- event:
		default:
			logging.Warn("Orchestrator", "State change subscriber is full, dropping event for %s", label)
		}
	}
}

// Start starts every registered service in dependency order. If a service
// fails to start, the ones already started are stopped in reverse order and
// the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	order, err := o.startOrder()
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.ctx, o.cancelFunc = context.WithCancel(ctx)
	o.mu.Unlock()

	for _, label := range order {
		svc, _ := o.GetService(label)
		logging.Info("Orchestrator", "Starting service %s", label)
		if err := svc.Start(ctx); err != nil {
			logging.Error("Orchestrator", err, "Failed to start service %s, rolling back", label)
			if stopErr := o.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				logging.Warn("Orchestrator", "Rollback incomplete: %v", stopErr)
			}
			return fmt.Errorf("failed to start service %s: %w", label, err)
		}
		o.mu.Lock()
		o.started = append(o.started, label)
		o.mu.Unlock()
	}

	o.startHealthCheckers()
	return nil
}

// Stop stops started services in reverse start order and ends health checks.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancelFunc
	started := o.started
	o.started = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		svc, _ := o.GetService(started[i])
		logging.Info("Orchestrator", "Stopping service %s", started[i])
		if err := svc.Stop(ctx); err != nil {
			logging.Error("Orchestrator", err, "Failed to stop service %s", started[i])
			errs = append(errs, fmt.Errorf("failed to stop service %s: %w", started[i], err))
		}
	}
	return errors.Join(errs...)
}

// Close stops delivering events to subscribers. Call it after Stop.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.stateChangeSubscribers {
		close(ch)
	}
	o.stateChangeSubscribers = nil
}

// GetServiceStatuses returns the status of every service in registration order.
func (o *Orchestrator) GetServiceStatuses() []ServiceStatus {
	o.mu.RLock()
	order := append([]string(nil), o.order...)
	o.mu.RUnlock()

	statuses := make([]ServiceStatus, 0, len(order))
	for _, label := range order {
		svc, _ := o.GetService(label)
		st := ServiceStatus{
			Label:  label,
			Type:   string(svc.GetType()),
			State:  string(svc.GetState()),
			Health: string(svc.GetHealth()),
		}
		if err := svc.GetLastError(); err != nil {
			st.Error = err.Error()
		}
		if provider, ok := svc.(services.ServiceDataProvider); ok {
			st.Data = provider.GetServiceData()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// startOrder sorts the registered services so that every service follows its
// dependencies. Unknown dependencies and cycles are errors.
func (o *Orchestrator) startOrder() ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(o.services))
	order := make([]string, 0, len(o.services))

	var visit func(label string, path []string) error
	visit = func(label string, path []string) error {
		switch marks[label] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle: %v", append(path, label))
		}
		marks[label] = visiting
		deps := append([]string(nil), o.services[label].GetDependencies()...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := o.services[dep]; !ok {
				return fmt.Errorf("service %s depends on unknown service %s", label, dep)
			}
			if err := visit(dep, append(path, label)); err != nil {
				return err
			}
		}
		marks[label] = done
		order = append(order, label)
		return nil
	}

	for _, label := range o.order {
		if err := visit(label, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
