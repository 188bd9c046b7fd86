package session

import "errors"

// Session errors.
var (
	// ErrNotConfigured indicates Connect was called before Configure.
	ErrNotConfigured = errors.New("session not configured")

	// ErrGatewayError wraps an error frame reported by the gateway.
	ErrGatewayError = errors.New("gateway error")

	// ErrConnectionClosed indicates the gateway closed the connection.
	ErrConnectionClosed = errors.New("connection closed by gateway")

	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotConnected indicates there is no open socket.
	ErrNotConnected = errors.New("not connected")
)

// ErrorKind classifies errors surfaced through the event sink.
type ErrorKind uint8

const (
	// KindConfiguration is a missing or invalid configuration.
	// Never retried: the session stays failed until reconfigured.
	KindConfiguration ErrorKind = iota

	// KindTransport is a socket open/read/write or TLS failure.
	// Always retried via the reconnect policy while reconnects are wanted.
	KindTransport

	// KindProtocol is a gateway-reported error frame or an unparsable
	// handshake payload. Retried like a transport error.
	KindProtocol
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "CONFIGURATION"
	case KindTransport:
		return "TRANSPORT"
	case KindProtocol:
		return "PROTOCOL"
	default:
		return "UNKNOWN"
	}
}
