// Package reconnect computes retry delays for gateway connection attempts.
//
// The policy is exponential backoff with a hard cap and no jitter by
// default: 1s, 2s, 4s, 8s, 15s, 15s, ... The delay sequence is part of the
// gateway contract, so jitter is an opt-in configuration knob.
package reconnect
