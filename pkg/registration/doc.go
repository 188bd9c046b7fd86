// Package registration talks to the DooPush HTTP API.
//
// The gateway only accepts devices the API knows about, so the SDK first
// registers the push token over HTTPS and receives the device ID and the
// gateway coordinates to connect to. The package also batches delivery
// statistics (receive/open/click events) and uploads them periodically.
package registration
