package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// DeviceState contains the persisted registration state for one app.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// AppID is the application the device is registered with.
	AppID int `json:"app_id,omitempty"`

	// DeviceID is the server-assigned device identifier.
	DeviceID string `json:"device_id,omitempty"`

	// DeviceToken is the push token the device last registered.
	DeviceToken string `json:"device_token,omitempty"`

	// Gateway holds the last gateway coordinates the server issued.
	Gateway *GatewaySnapshot `json:"gateway,omitempty"`

	// BadgeCount is the locally tracked application badge count.
	BadgeCount int `json:"badge_count,omitempty"`
}

// GatewaySnapshot captures gateway coordinates for persistence.
type GatewaySnapshot struct {
	// Host is the gateway hostname or IP address.
	Host string `json:"host"`

	// Port is the gateway TCP port.
	Port int `json:"port"`

	// UseTLS selects TLS-over-TCP.
	UseTLS bool `json:"use_tls,omitempty"`
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Save persists the device state to disk.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (no prior registration).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state DeviceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Clear removes the state file.
// Safe to call when the file doesn't exist.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
