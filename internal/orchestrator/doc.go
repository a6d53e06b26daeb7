// Package orchestrator manages the lifecycle of the relay's services.
//
// Services are registered with a label and may declare dependencies on other
// labels. Start brings them up in dependency order (scene forwarder, then the
// relay, then the admin endpoint) and rolls back if any of them fails; Stop
// takes them down in reverse. Services implementing services.HealthChecker
// are polled at their own interval while running.
//
// # Usage Example
//
//	orch := orchestrator.New()
//	orch.Register(sceneSvc)
//	orch.Register(relaySvc)
//	if err := orch.Start(ctx); err != nil {
//	    return err
//	}
//	defer orch.Stop(context.Background())
package orchestrator
