package telemetry

import (
	"errors"
	"fmt"

	"wearable-sync/internal/models"
)

var (
	// ErrNotConnected sync attempted without a connected device.
	ErrNotConnected = errors.New("device not connected")
	// ErrBusy the operation could not get its turn before the queue timeout or caller ctx ended.
	ErrBusy = errors.New("telemetry service busy")
	// ErrConnectionFailed device unreachable, pairing rejected or permission denied.
	ErrConnectionFailed = errors.New("device connection failed")
	// ErrSyncFailed the source could not deliver a reading.
	ErrSyncFailed = errors.New("device sync failed")
	// ErrInvalidBaseline negative steps or calories.
	ErrInvalidBaseline = errors.New("invalid baseline")
)

// ConnectFailure why a connect attempt ended in Disconnected.
type ConnectFailure string

const (
	FailureTimeout          ConnectFailure = "timeout"
	FailureDeviceNotFound   ConnectFailure = "device_not_found"
	FailurePairingDenied    ConnectFailure = "pairing_denied"
	FailurePermissionDenied ConnectFailure = "permission_denied"
	FailureCanceled         ConnectFailure = "canceled"
	FailureUnavailable      ConnectFailure = "unavailable"
)

// ConnectionError is returned by Connect and by sources on connect failure.
// It matches ErrConnectionFailed with errors.Is.
type ConnectionError struct {
	Reason ConnectFailure
	Err    error
}

// NewConnectionError wraps err with a failure reason.
func NewConnectionError(reason ConnectFailure, err error) *ConnectionError {
	return &ConnectionError{Reason: reason, Err: err}
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device connection failed: %s", e.Reason)
	}
	return fmt.Sprintf("device connection failed: %s: %v", e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// ParseConnectFailure maps a device-reported reason to a ConnectFailure.
func ParseConnectFailure(reason string) ConnectFailure {
	switch ConnectFailure(reason) {
	case FailureTimeout, FailureDeviceNotFound, FailurePairingDenied,
		FailurePermissionDenied, FailureCanceled:
		return ConnectFailure(reason)
	default:
		return FailureUnavailable
	}
}

// Kind maps err to its wire name; empty for nil or unknown errors.
func Kind(err error) models.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConnected):
		return models.ErrorKindNotConnected
	case errors.Is(err, ErrBusy):
		return models.ErrorKindBusy
	case errors.Is(err, ErrConnectionFailed):
		return models.ErrorKindConnectionFailed
	case errors.Is(err, ErrSyncFailed):
		return models.ErrorKindSyncFailed
	case errors.Is(err, ErrInvalidBaseline):
		return models.ErrorKindInvalidBaseline
	default:
		return ""
	}
}
