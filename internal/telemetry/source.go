package telemetry

import (
	"context"
	"fmt"
	"time"

	"wearable-sync/internal/models"
)

// Source abstracts the device integration (mock, MQTT bridge, vendor cloud).
// Implementations must honor ctx on Connect and Fetch.
type Source interface {
	// Connect acquires the device. Failures should be *ConnectionError.
	Connect(ctx context.Context) (models.DeviceIdentity, error)
	// Fetch reads one telemetry reading from a connected device.
	Fetch(ctx context.Context, device models.DeviceIdentity) (models.Reading, error)
	// Disconnect releases the device.
	Disconnect(ctx context.Context, device models.DeviceIdentity) error
}

// SyncMode how a reading is applied to the snapshot.
type SyncMode string

const (
	// ModeAccumulate readings carry deltas added to the running counters.
	ModeAccumulate SyncMode = "accumulate"
	// ModeReplace readings carry cumulative daily totals.
	ModeReplace SyncMode = "replace"
)

// ParseSyncMode parses s, returning def when s is empty.
func ParseSyncMode(s string, def SyncMode) (SyncMode, error) {
	switch SyncMode(s) {
	case "":
		return def, nil
	case ModeAccumulate, ModeReplace:
		return SyncMode(s), nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
}

// EventType lifecycle event emitted to observers
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventSynced       EventType = "synced"
)

// Event is delivered to observers after the state change is visible.
type Event struct {
	Type     EventType
	Device   models.DeviceIdentity
	Snapshot *models.TelemetrySnapshot
	At       time.Time
}

// Observer receives lifecycle events. Errors are logged, never returned to callers.
type Observer interface {
	Notify(ctx context.Context, event Event) error
}
