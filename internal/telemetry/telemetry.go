package telemetry

import (
	"time"
)

// Mode names the acquisition mode a telemetry record was produced in
type Mode string

const (
	ModeSweep   Mode = "sweep"
	ModeMonitor Mode = "monitor"
)

// Telemetry is the outcome of one acquisition tick
type Telemetry struct {
	SessionID     string    `json:"sessionId"`               // Acquisition session the tick belongs to
	Mode          Mode      `json:"mode"`                    // Sweep or monitor
	Timestamp     time.Time `json:"timestamp"`               // Host time the tick was reported
	Frequency     int       `json:"frequency"`               // Frequency the sample belongs to, in MHz
	RSSI          *int      `json:"rssi,omitempty"`          // Normalised RSSI, nil when only the frequency is known
	NextFrequency *int      `json:"nextFrequency,omitempty"` // Frequency commanded for the next sweep tick
	Window        *Window   `json:"window,omitempty"`        // Visible time window in monitor mode
}

// Window is the visible time window of the monitor trace, in sample timestamps (ms)
type Window struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}
