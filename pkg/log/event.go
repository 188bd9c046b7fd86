package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection attempt (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the gateway address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// AppID is the application identifier (populated after configure).
	AppID int `cbor:"7,keyasint,omitempty"`

	// DeviceToken is the device push token (populated after registration).
	DeviceToken string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"9,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Session state
	Heartbeat   *HeartbeatEvent   `cbor:"12,keyasint,omitempty"` // Ping/pong
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw chunks).
	LayerTransport Layer = 0
	// LayerWire is the frame decoding layer (tag + payload).
	LayerWire Layer = 1
	// LayerSession is the connection session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (register/ack/push).
	CategoryMessage Category = 0
	// CategoryControl indicates a heartbeat message (ping/pong).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded frame at the wire layer.
type MessageEvent struct {
	// Tag is the frame type tag byte.
	Tag uint8 `cbor:"1,keyasint"`

	// TagName is the human-readable tag name.
	TagName string `cbor:"2,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"3,keyasint"`

	// Dropped indicates the frame carried an unknown tag and was discarded.
	Dropped bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures session state transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// HeartbeatEvent captures heartbeat activity.
type HeartbeatEvent struct {
	// Kind of heartbeat message.
	Kind HeartbeatKind `cbor:"1,keyasint"`
}

// HeartbeatKind indicates the heartbeat message kind.
type HeartbeatKind uint8

const (
	// HeartbeatPing indicates an outbound ping.
	HeartbeatPing HeartbeatKind = 0
	// HeartbeatPong indicates an inbound pong.
	HeartbeatPong HeartbeatKind = 1
)

// String returns the heartbeat kind name.
func (k HeartbeatKind) String() string {
	switch k {
	case HeartbeatPing:
		return "PING"
	case HeartbeatPong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
