package wire

// TypeTag identifies the kind of a gateway frame.
type TypeTag byte

// Gateway frame type tags.
const (
	// TagPing is a client-originated heartbeat probe.
	TagPing TypeTag = 0x01

	// TagPong is the gateway's answer to a ping.
	TagPong TypeTag = 0x02

	// TagRegister carries the JSON registration payload.
	TagRegister TypeTag = 0x03

	// TagAck acknowledges a registration.
	TagAck TypeTag = 0x04

	// TagPush carries a push notification payload.
	TagPush TypeTag = 0x05

	// TagError carries a gateway-reported error as UTF-8 text.
	TagError TypeTag = 0xFF
)

// String returns the tag name.
func (t TypeTag) String() string {
	switch t {
	case TagPing:
		return "PING"
	case TagPong:
		return "PONG"
	case TagRegister:
		return "REGISTER"
	case TagAck:
		return "ACK"
	case TagPush:
		return "PUSH"
	case TagError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Known reports whether the tag has a handling routine.
// Unknown tags are logged and dropped, never treated as fatal.
func (t TypeTag) Known() bool {
	switch t {
	case TagPing, TagPong, TagRegister, TagAck, TagPush, TagError:
		return true
	default:
		return false
	}
}

// Message is one decoded gateway frame.
type Message struct {
	// Tag selects the handling routine.
	Tag TypeTag

	// Payload is the frame body. May be empty (ping/pong).
	Payload []byte
}

// Encode serializes a frame: the tag byte followed by the payload.
func Encode(tag TypeTag, payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(tag)
	copy(buf[1:], payload)
	return buf
}

// Decode parses one frame. Returns nil for empty input; this is the only
// failure mode the format has. The payload slice aliases data.
func Decode(data []byte) *Message {
	if len(data) == 0 {
		return nil
	}
	return &Message{
		Tag:     TypeTag(data[0]),
		Payload: data[1:],
	}
}
