// Package transport provides the socket layer for gateway connections.
//
// The transport layer handles:
//   - TCP dialing, optionally wrapped in TLS (gateway-selected)
//   - Chunk-based frame delimiting
//   - Read/write deadlines
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Tag-framed messages (wire)   │
//	├────────────────────────────────┤
//	│   One read = one frame         │
//	├────────────────────────────────┤
//	│   TLS (optional)               │
//	├────────────────────────────────┤
//	│   TCP                          │
//	└────────────────────────────────┘
//
// # Framing caveat
//
// The gateway wire format has no length prefix, so frames are delimited by
// TCP segmentation alone: each successful socket read is treated as exactly
// one frame. A frame split across two reads, or two frames coalesced into
// one read, is mis-framed. This matches the deployed gateway behavior and
// is kept for wire compatibility.
package transport
