package driver

// DeviceType represents human readable device type. DeviceType
// can be useful to filter the drivers too.
type DeviceType string

const (
	// CaptureCard represents dedicated video capture hardware.
	CaptureCard DeviceType = "capture-card"
	// Camera represents V4L2 style camera devices.
	Camera DeviceType = "camera"
	// Screen represents display capture.
	Screen DeviceType = "screen"
	// Synthetic represents generated test sources.
	Synthetic DeviceType = "synthetic"
)

// Priority orders devices of the same type; higher is preferred.
type Priority float32

const (
	PriorityLow    Priority = 0.1
	PriorityNormal Priority = 0.5
	PriorityHigh   Priority = 0.8
)
