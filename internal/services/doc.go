// Package services defines the lifecycle contract shared by the relay's
// long-running parts.
//
// A Service is started and stopped by the orchestrator in dependency order.
// Implementations embed BaseService for state tracking and report every
// transition through UpdateState, which notifies the registered
// StateChangeCallback.
//
// Concrete services live in subpackages:
//
//   - sceneforward: the outbound scene forwarder
//   - relayserver: the listener and router
//   - adminserver: the optional MCP admin endpoint
//
// Optional interfaces:
//
//   - ServiceDataProvider exposes service specific data for status output
//   - HealthChecker is polled by the orchestrator at the returned interval
package services
