package altid

// State is the state of a connection.
type State int32

const (
	// StateDisconnected is the state of a connection that has not
	// been started, or that was cancelled.
	StateDisconnected State = iota

	// StateConnecting is the state of a connection that is waiting
	// for its transport.
	StateConnecting

	// StateReady means the transport is up. The version and attach
	// handshake is the first thing sent in this state.
	StateReady

	// StateFailed is terminal. Requests submitted to a failed
	// connection fail immediately.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
