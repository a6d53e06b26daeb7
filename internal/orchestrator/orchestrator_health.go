package orchestrator

import (
	"context"
	"time"

	"rcarelay/internal/services"
	"rcarelay/pkg/logging"
)

const defaultHealthCheckInterval = 30 * time.Second

// startHealthCheckers starts one goroutine per service that implements
// services.HealthChecker. The goroutines end when Stop cancels the context.
func (o *Orchestrator) startHealthCheckers() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, label := range o.started {
		if o.healthCheckers[label] {
			continue
		}
		checker, ok := o.services[label].(services.HealthChecker)
		if !ok {
			logging.Debug("Orchestrator", "Service %s does not implement HealthChecker", label)
			continue
		}
		o.healthCheckers[label] = true
		o.wg.Add(1)
		go o.runHealthChecksForService(o.ctx, o.services[label], checker)
	}
}

// runHealthChecksForService calls CheckHealth at the service's interval while
// the service is running. The service updates its own health from the result.
func (o *Orchestrator) runHealthChecksForService(ctx context.Context, service services.Service, checker services.HealthChecker) {
	label := service.GetLabel()
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.healthCheckers, label)
		o.mu.Unlock()
		logging.Debug("Orchestrator", "Health check goroutine stopped for %s", label)
	}()

	interval := checker.GetHealthCheckInterval()
	if interval <= 0 {
		interval = defaultHealthCheckInterval
	}
	logging.Debug("Orchestrator", "Health check goroutine started for %s with interval %v", label, interval)

	check := func() {
		if service.GetState() != services.StateRunning {
			return
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if health, err := checker.CheckHealth(checkCtx); err != nil {
			logging.Debug("Orchestrator", "Health check for %s reported %s: %v", label, health, err)
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
