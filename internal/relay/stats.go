package relay

import "sync/atomic"

// Stats counts relay activity. Fields are updated on the Router loop and
// read from anywhere.
type Stats struct {
	Accepted           atomic.Uint64
	Disconnected       atomic.Uint64
	Handshakes         atomic.Uint64
	HandshakesRejected atomic.Uint64
	PlannerCommands    atomic.Uint64
	UnitCommands       atomic.Uint64
	UnitWrites         atomic.Uint64
	SceneForwards      atomic.Uint64
	Broadcasts         atomic.Uint64
	Malformed          atomic.Uint64
	UnknownTarget      atomic.Uint64
	QueueFull          atomic.Uint64
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	Accepted           uint64 `json:"accepted"`
	Disconnected       uint64 `json:"disconnected"`
	Handshakes         uint64 `json:"handshakes"`
	HandshakesRejected uint64 `json:"handshakesRejected"`
	PlannerCommands    uint64 `json:"plannerCommands"`
	UnitCommands       uint64 `json:"unitCommands"`
	UnitWrites         uint64 `json:"unitWrites"`
	SceneForwards      uint64 `json:"sceneForwards"`
	Broadcasts         uint64 `json:"broadcasts"`
	Malformed          uint64 `json:"malformed"`
	UnknownTarget      uint64 `json:"unknownTarget"`
	QueueFull          uint64 `json:"queueFull"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Accepted:           s.Accepted.Load(),
		Disconnected:       s.Disconnected.Load(),
		Handshakes:         s.Handshakes.Load(),
		HandshakesRejected: s.HandshakesRejected.Load(),
		PlannerCommands:    s.PlannerCommands.Load(),
		UnitCommands:       s.UnitCommands.Load(),
		UnitWrites:         s.UnitWrites.Load(),
		SceneForwards:      s.SceneForwards.Load(),
		Broadcasts:         s.Broadcasts.Load(),
		Malformed:          s.Malformed.Load(),
		UnknownTarget:      s.UnknownTarget.Load(),
		QueueFull:          s.QueueFull.Load(),
	}
}
