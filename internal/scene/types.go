package scene

// Forwarder delivers framed unit commands to the scene. Send never blocks;
// messages that cannot be queued are dropped.
type Forwarder interface {
	Send(msg []byte)
}

// StatusDetail is the state of the outbound scene connection.
type StatusDetail string

const (
	StatusInitializing StatusDetail = "Initializing"
	StatusConnected    StatusDetail = "Connected"
	// StatusReconnecting means the last dial or write failed and a redial is scheduled.
	StatusReconnecting StatusDetail = "Reconnecting"
	StatusStopped      StatusDetail = "Stopped"
	// StatusFailed is terminal: the single permitted dial failed.
	StatusFailed StatusDetail = "Failed"
)

// IsReady reports whether messages are currently being written to the scene.
func (s StatusDetail) IsReady() bool { return s == StatusConnected }

// UpdateFunc receives status transitions. Repeated identical reports are suppressed.
type UpdateFunc func(detail StatusDetail, err error)

// Status is a point-in-time view of a forwarder.
type Status struct {
	Address string       `json:"address"`
	Detail  StatusDetail `json:"detail"`
	Error   string       `json:"error,omitempty"`
	Sent    uint64       `json:"sent"`
	Dropped uint64       `json:"dropped"`
	Queued  int          `json:"queued"`
}
