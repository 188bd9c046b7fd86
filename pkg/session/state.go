package session

// State represents the connection session state.
type State uint8

const (
	// StateDisconnected indicates no active connection and no pending
	// reconnect. Initial state; also reached by Disconnect.
	StateDisconnected State = iota

	// StateConnecting indicates a socket attempt is in progress.
	StateConnecting

	// StateConnected indicates the socket is open but the registration
	// handshake has not been sent yet.
	StateConnected

	// StateRegistering indicates the registration frame has been sent and
	// the session is waiting for the gateway's ack.
	StateRegistering

	// StateRegistered indicates the handshake completed; heartbeats run
	// and pushes may arrive.
	StateRegistered

	// StateFailed indicates the last attempt failed. A reconnect is
	// scheduled unless the user disconnected or the attempt budget ran out.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
