// Package wire implements the DooPush gateway wire format.
//
// Every frame is a single type tag byte followed by the payload:
//
//	┌──────────┬──────────────────────┐
//	│ Tag (1B) │ Payload (0..n bytes) │
//	└──────────┴──────────────────────┘
//
// There is no length prefix and no checksum. The gateway protocol relies
// on the transport layer to delimit frames (one socket read carries one
// frame, see package transport).
//
// Tags:
//   - 0x01 PING (client→gateway, empty payload)
//   - 0x02 PONG (gateway→client, empty payload)
//   - 0x03 REGISTER (client→gateway, JSON registration payload)
//   - 0x04 ACK (gateway→client, opaque payload)
//   - 0x05 PUSH (gateway→client, JSON push payload)
//   - 0xFF ERROR (gateway→client, UTF-8 error text)
package wire
