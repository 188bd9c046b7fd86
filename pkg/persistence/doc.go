// Package persistence stores device registration state as a JSON file.
//
// The SDK persists the device identity the server assigned (device ID,
// gateway coordinates) and local counters such as the badge count, so a
// restarted app can reconnect without re-registering over HTTP first.
package persistence
