package source

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

// Platform families and the device each one pairs with.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"

	AppleWatchName = "Apple Watch"
	WearOSName     = "Wear OS Watch"
)

// ResolvePlatform maps "auto" to the host platform family.
func ResolvePlatform(platform string) string {
	if platform != "" && platform != "auto" {
		return platform
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return PlatformIOS
	default:
		return PlatformAndroid
	}
}

// DeviceNameForPlatform returns the fixed device name for a platform family.
func DeviceNameForPlatform(platform string) string {
	if ResolvePlatform(platform) == PlatformIOS {
		return AppleWatchName
	}
	return WearOSName
}

// MockConfig tunes the simulated device.
type MockConfig struct {
	DeviceID     string
	Platform     string
	ConnectDelay time.Duration
	SyncDelay    time.Duration
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
}

// MockSource simulates a wearable: fixed acquisition delay, then readings with
// bounded random step/calorie deltas and fresh vitals on every fetch.
type MockSource struct {
	cfg    MockConfig
	logger *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	connectErr error
}

// NewMockSource creates a simulated source.
func NewMockSource(cfg MockConfig, logger *zap.Logger) *MockSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-watch"
	}
	return &MockSource{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// FailConnect makes every following Connect return err until called with nil.
func (m *MockSource) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// Connect waits the acquisition delay and returns the platform device.
func (m *MockSource) Connect(ctx context.Context) (models.DeviceIdentity, error) {
	if err := sleep(ctx, m.cfg.ConnectDelay); err != nil {
		return models.DeviceIdentity{}, err
	}
	m.mu.Lock()
	err := m.connectErr
	m.mu.Unlock()
	if err != nil {
		return models.DeviceIdentity{}, err
	}
	device := models.DeviceIdentity{
		ID:   m.cfg.DeviceID,
		Name: DeviceNameForPlatform(m.cfg.Platform),
	}
	m.logger.Debug("Mock device paired", zap.String("device_name", device.Name))
	return device, nil
}

// Fetch returns deltas: steps U[10,15], calories U[3,7]; vitals are drawn fresh:
// heart rate U[60,99], distance U[2,6], active minutes U[30,89].
func (m *MockSource) Fetch(ctx context.Context, _ models.DeviceIdentity) (models.Reading, error) {
	if err := sleep(ctx, m.cfg.SyncDelay); err != nil {
		return models.Reading{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Reading{
		Steps:         10 + m.rng.Intn(6),
		Calories:      3 + m.rng.Intn(5),
		HeartRate:     models.IntPtr(60 + m.rng.Intn(40)),
		Distance:      models.Float64Ptr(float64(2 + m.rng.Intn(5))),
		ActiveMinutes: models.IntPtr(30 + m.rng.Intn(60)),
		Timestamp:     time.Now(),
	}, nil
}

// Disconnect has nothing to release.
func (m *MockSource) Disconnect(_ context.Context, _ models.DeviceIdentity) error {
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
