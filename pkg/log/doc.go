// Package log provides structured protocol event logging for the SDK.
//
// Events are captured at three layers (transport, wire, session) and can be
// written to a CBOR event file for later replay, bridged to log/slog for
// console output, or fanned out to several sinks at once.
//
// Applications that do not care about protocol logging pass nil or
// NoopLogger; the SDK never requires a logger.
package log
