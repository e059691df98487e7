package models

import "time"

// NoDeviceName is reported while no device is connected.
const NoDeviceName = "No device connected"

// ConnectionState lifecycle of the single device connection
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// DeviceIdentity identifies the connected wearable.
type DeviceIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether no device has been assigned.
func (d DeviceIdentity) IsZero() bool {
	return d.ID == "" && d.Name == ""
}

// TelemetrySnapshot latest known activity metrics
type TelemetrySnapshot struct {
	Steps         int      `json:"steps"`
	Calories      int      `json:"calories"`
	HeartRate     *int     `json:"heartRate,omitempty"`
	Distance      *float64 `json:"distance,omitempty"`
	ActiveMinutes *int     `json:"activeMinutes,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s TelemetrySnapshot) Clone() TelemetrySnapshot {
	out := TelemetrySnapshot{Steps: s.Steps, Calories: s.Calories}
	if s.HeartRate != nil {
		v := *s.HeartRate
		out.HeartRate = &v
	}
	if s.Distance != nil {
		v := *s.Distance
		out.Distance = &v
	}
	if s.ActiveMinutes != nil {
		v := *s.ActiveMinutes
		out.ActiveMinutes = &v
	}
	return out
}

// Reading is one fetch result from a telemetry source. Depending on the sync mode
// Steps and Calories are either deltas or cumulative totals.
type Reading struct {
	Steps         int       `json:"steps"`
	Calories      int       `json:"calories"`
	HeartRate     *int      `json:"heartRate,omitempty"`
	Distance      *float64  `json:"distance,omitempty"`
	ActiveMinutes *int      `json:"activeMinutes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SyncRecord time of the last successful sync
type SyncRecord struct {
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// Status is the read-only view handed to callers.
type Status struct {
	State       ConnectionState `json:"state"`
	IsConnected bool            `json:"isConnected"`
	LastSync    *time.Time      `json:"lastSync"`
	DeviceName  string          `json:"deviceName"`
}

// ConnectResult outcome of a connect call
type ConnectResult struct {
	Success    bool      `json:"success"`
	DeviceName string    `json:"deviceName,omitempty"`
	Error      ErrorKind `json:"error,omitempty"`
}

// ErrorKind stable wire name of a telemetry error
type ErrorKind string

const (
	ErrorKindNotConnected     ErrorKind = "not_connected"
	ErrorKindBusy             ErrorKind = "busy"
	ErrorKindConnectionFailed ErrorKind = "connection_failed"
	ErrorKindSyncFailed       ErrorKind = "sync_failed"
	ErrorKindInvalidBaseline  ErrorKind = "invalid_baseline"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
