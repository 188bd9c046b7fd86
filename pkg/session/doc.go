// Package session implements the gateway connection session.
//
// A Session owns exactly one socket at a time and drives the connection
// state machine:
//
//	disconnected --Connect()------> connecting
//	connecting   --socket ready---> connected
//	connected    --register sent--> registering
//	registering  --ack received---> registered
//	registered   --socket error---> failed
//	any          --socket error---> failed
//	failed       --backoff fires--> connecting
//	any          --Disconnect()---> disconnected
//
// disconnected is both the initial state and a user-reachable terminal
// state: no reconnect is ever scheduled from it. failed schedules a
// reconnect for transport and protocol errors; configuration errors and
// user disconnects never retry.
//
// All state mutations are serialized under one mutex, and event sink
// callbacks are delivered in state-change order from a single dispatch
// goroutine, so host code needs no locking of its own.
package session
