package registration

import (
	"os"
	"runtime"
)

// SDKVersion is reported to the API in registration requests.
const SDKVersion = "1.0.0"

// DeviceInfo describes the registering device.
type DeviceInfo struct {
	// Platform is the client platform ("ios", "android", ...).
	Platform string `json:"platform"`

	// Model is the device model, when known.
	Model string `json:"model,omitempty"`

	// SystemVersion is the OS version, when known.
	SystemVersion string `json:"system_version,omitempty"`

	// Arch is the CPU architecture.
	Arch string `json:"arch,omitempty"`

	// Hostname is the local hostname.
	Hostname string `json:"hostname,omitempty"`

	// SDKVersion is the SDK release that built this client.
	SDKVersion string `json:"sdk_version,omitempty"`
}

// Collector gathers device information for registration requests.
type Collector interface {
	// Collect returns the current device information.
	Collect() DeviceInfo
}

// SystemCollector collects device information from the local system.
type SystemCollector struct{}

// Collect returns device information derived from the runtime.
func (SystemCollector) Collect() DeviceInfo {
	hostname, _ := os.Hostname()
	return DeviceInfo{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		Hostname:   hostname,
		SDKVersion: SDKVersion,
	}
}

var _ Collector = SystemCollector{}
