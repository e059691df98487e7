package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

const (
	notifyTimeout     = 5 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Config tunes the service. Zero timeouts disable the corresponding bound.
type Config struct {
	Mode           SyncMode
	ConnectTimeout time.Duration
	SyncTimeout    time.Duration
	QueueTimeout   time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now for sync stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Service owns the single device connection and its telemetry counters.
// Connect, Sync, SetBaseline and Disconnect are serialized: a call made while
// another is in flight queues behind it for at most Config.QueueTimeout.
// Observers run while the operation still holds the slot, each bounded by
// notifyTimeout, so events are delivered in the order the state changed.
type Service struct {
	source    Source
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	observers []Observer

	// slot holds one token while an operation runs.
	slot chan struct{}

	mu        sync.RWMutex
	state     models.ConnectionState
	connected bool
	device    models.DeviceIdentity
	snapshot  models.TelemetrySnapshot
	record    models.SyncRecord
	cancelOp  context.CancelFunc
}

// New creates a disconnected service reading from source.
func New(source Source, cfg Config, logger *zap.Logger, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("telemetry source is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAccumulate
	}
	if _, err := ParseSyncMode(string(cfg.Mode), ModeAccumulate); err != nil {
		return nil, err
	}
	s := &Service{
		source: source,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		slot:   make(chan struct{}, 1),
		state:  models.StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode returns the configured sync mode.
func (s *Service) Mode() SyncMode { return s.cfg.Mode }

// Connect acquires the device. On any failure the service ends in Disconnected
// and the returned error matches ErrConnectionFailed (or ErrBusy if the call never ran).
func (s *Service) Connect(ctx context.Context) (models.ConnectResult, error) {
	if err := s.acquire(ctx); err != nil {
		return models.ConnectResult{Error: Kind(err)}, err
	}
	opCtx, done := s.beginOp(ctx, s.cfg.ConnectTimeout)

	s.mu.Lock()
	previous := s.device
	s.state = models.StateConnecting
	s.mu.Unlock()

	s.logger.Info("Connecting device", zap.Bool("reconnect", !previous.IsZero()))

	device, err := s.source.Connect(opCtx)
	if err == nil && opCtx.Err() != nil {
		// the source ignored cancellation; treat the late success as a failure
		err = opCtx.Err()
	}
	done()

	if err != nil {
		connErr := classifyConnectError(ctx, err)
		s.mu.Lock()
		s.resetLocked()
		s.mu.Unlock()

		s.logger.Warn("Device connection failed",
			zap.String("reason", string(connErr.Reason)),
			zap.Error(connErr),
		)
		if !previous.IsZero() {
			s.releaseDevice(previous)
			s.notify(Event{Type: EventDisconnected, Device: previous, At: s.now()})
		}
		s.release()
		return models.ConnectResult{Error: models.ErrorKindConnectionFailed}, connErr
	}

	now := s.now()
	s.mu.Lock()
	s.state = models.StateConnected
	s.connected = true
	s.device = device
	s.record.LastSyncAt = &now
	s.mu.Unlock()

	s.logger.Info("Device connected",
		zap.String("device_id", device.ID),
		zap.String("device_name", device.Name),
	)
	s.notify(Event{Type: EventConnected, Device: device, At: now})
	s.release()
	return models.ConnectResult{Success: true, DeviceName: device.Name}, nil
}

// Disconnect cancels any in-flight operation and resets the connection.
// It is valid from any state and always succeeds.
func (s *Service) Disconnect() {
	s.mu.Lock()
	if s.cancelOp != nil {
		s.cancelOp()
	}
	s.mu.Unlock()

	s.slot <- struct{}{}

	s.mu.Lock()
	device := s.device
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("Device disconnected", zap.String("device_id", device.ID))
	if !device.IsZero() {
		s.releaseDevice(device)
		s.notify(Event{Type: EventDisconnected, Device: device, At: s.now()})
	}
	s.release()
}

// Sync fetches a reading and applies it according to the sync mode.
// Without a connected device it fails with ErrNotConnected and changes nothing.
func (s *Service) Sync(ctx context.Context) (models.TelemetrySnapshot, error) {
	if err := s.acquire(ctx); err != nil {
		return models.TelemetrySnapshot{}, err
	}

	s.mu.RLock()
	state, device := s.state, s.device
	s.mu.RUnlock()
	if state != models.StateConnected {
		s.release()
		return models.TelemetrySnapshot{}, ErrNotConnected
	}

	opCtx, done := s.beginOp(ctx, s.cfg.SyncTimeout)
	reading, err := s.source.Fetch(opCtx, device)
	if err == nil && opCtx.Err() != nil {
		err = opCtx.Err()
	}
	done()
	if err != nil {
		s.release()
		s.logger.Warn("Device sync failed", zap.String("device_id", device.ID), zap.Error(err))
		return models.TelemetrySnapshot{}, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	now := s.now()
	s.mu.Lock()
	s.snapshot = applyReading(s.cfg.Mode, s.snapshot, reading)
	s.record.LastSyncAt = &now
	snapshot := s.snapshot.Clone()
	s.mu.Unlock()

	s.logger.Debug("Device synced",
		zap.String("device_id", device.ID),
		zap.Int("steps", snapshot.Steps),
		zap.Int("calories", snapshot.Calories),
	)
	published := snapshot.Clone()
	s.notify(Event{Type: EventSynced, Device: device, Snapshot: &published, At: now})
	s.release()
	return snapshot, nil
}

// SetBaseline overwrites the step and calorie counters. It queues behind any
// in-flight operation so it never races a sync increment.
func (s *Service) SetBaseline(ctx context.Context, steps, calories int) error {
	if steps < 0 || calories < 0 {
		return fmt.Errorf("%w: steps=%d calories=%d", ErrInvalidBaseline, steps, calories)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot.Steps = steps
	s.snapshot.Calories = calories
	s.mu.Unlock()
	s.release()

	s.logger.Debug("Baseline set", zap.Int("steps", steps), zap.Int("calories", calories))
	return nil
}

// Status is a side-effect free read, callable from any state.
func (s *Service) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := s.device.Name
	if s.device.IsZero() {
		name = models.NoDeviceName
	}
	var lastSync *time.Time
	if s.record.LastSyncAt != nil {
		t := *s.record.LastSyncAt
		lastSync = &t
	}
	return models.Status{
		State:       s.state,
		IsConnected: s.connected,
		LastSync:    lastSync,
		DeviceName:  name,
	}
}

// Device returns the connected device identity, zero when disconnected.
func (s *Service) Device() models.DeviceIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// Snapshot returns a copy of the current counters.
func (s *Service) Snapshot() models.TelemetrySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Close tears the service down, releasing any connected device.
func (s *Service) Close() error {
	s.Disconnect()
	return nil
}

func (s *Service) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	if s.cfg.QueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueueTimeout)
		defer cancel()
	}
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (s *Service) release() {
	<-s.slot
}

// beginOp derives the operation context and publishes its cancel func for Disconnect.
func (s *Service) beginOp(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	var opCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(ctx)
	}
	s.mu.Lock()
	s.cancelOp = cancel
	s.mu.Unlock()

	return opCtx, func() {
		s.mu.Lock()
		s.cancelOp = nil
		s.mu.Unlock()
		cancel()
	}
}

// resetLocked returns to Disconnected. Counters are kept; only identity and sync record clear.
func (s *Service) resetLocked() {
	s.state = models.StateDisconnected
	s.connected = false
	s.device = models.DeviceIdentity{}
	s.record.LastSyncAt = nil
}

func (s *Service) releaseDevice(device models.DeviceIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.source.Disconnect(ctx, device); err != nil {
		s.logger.Warn("Failed to release device", zap.String("device_id", device.ID), zap.Error(err))
	}
}

func (s *Service) notify(event Event) {
	for _, o := range s.observers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := o.Notify(ctx, event); err != nil {
			s.logger.Warn("Observer failed",
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func classifyConnectError(callerCtx context.Context, err error) *ConnectionError {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	switch {
	case errors.Is(callerCtx.Err(), context.Canceled):
		return NewConnectionError(FailureCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewConnectionError(FailureTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewConnectionError(FailureCanceled, err)
	default:
		return NewConnectionError(FailureUnavailable, err)
	}
}

func applyReading(mode SyncMode, prev models.TelemetrySnapshot, r models.Reading) models.TelemetrySnapshot {
	next := models.TelemetrySnapshot{
		HeartRate:     r.HeartRate,
		Distance:      r.Distance,
		ActiveMinutes: r.ActiveMinutes,
	}
	switch mode {
	case ModeReplace:
		next.Steps = r.Steps
		next.Calories = r.Calories
	default:
		next.Steps = prev.Steps + r.Steps
		next.Calories = prev.Calories + r.Calories
	}
	if next.Steps < 0 {
		next.Steps = 0
	}
	if next.Calories < 0 {
		next.Calories = 0
	}
	return next.Clone()
}
