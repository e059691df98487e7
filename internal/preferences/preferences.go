package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"wearable-sync/internal/models"
	"wearable-sync/internal/repository"
	"wearable-sync/internal/store"
)

// Keys of the persisted UI flags.
const (
	KeyPairedDevices = "connected_bluetooth_devices"
	KeyBannerSeen    = "smartwatch_banner_seen"
)

// ErrNotFound key was never written.
var ErrNotFound = errors.New("preference not set")

// Backend persists raw preference values.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type kvBackend struct {
	kv store.KV
}

// NewKVBackend stores preferences in a KV store without expiry.
func NewKVBackend(kv store.KV) Backend {
	return &kvBackend{kv: kv}
}

func (b *kvBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.kv.Get(ctx, key)
	if errors.Is(err, store.ErrMiss) {
		return "", ErrNotFound
	}
	return v, err
}

func (b *kvBackend) Put(ctx context.Context, key, value string) error {
	return b.kv.Set(ctx, key, value, 0)
}

func (b *kvBackend) Delete(ctx context.Context, key string) error {
	return b.kv.Delete(ctx, key)
}

type postgresBackend struct {
	repo *repository.PreferencesRepository
}

// NewPostgresBackend stores preferences in the ui_preferences table.
func NewPostgresBackend(repo *repository.PreferencesRepository) Backend {
	return &postgresBackend{repo: repo}
}

func (b *postgresBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.repo.Get(ctx, key)
	if errors.Is(err, repository.ErrPreferenceNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (b *postgresBackend) Put(ctx context.Context, key, value string) error {
	return b.repo.Put(ctx, key, value)
}

func (b *postgresBackend) Delete(ctx context.Context, key string) error {
	return b.repo.Delete(ctx, key)
}

// Store reads and writes the paired-device cache and the banner flag.
type Store struct {
	backend Backend
	logger  *zap.Logger

	// serializes read-modify-write of the device list
	mu sync.Mutex
}

func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Get returns both flags; unset keys read as zero values.
func (s *Store) Get(ctx context.Context) (models.Preferences, error) {
	devices, err := s.pairedDevices(ctx)
	if err != nil {
		return models.Preferences{}, err
	}
	seen, err := s.bannerSeen(ctx)
	if err != nil {
		return models.Preferences{}, err
	}
	return models.Preferences{PairedDevices: devices, BannerSeen: seen}, nil
}

// RememberDevice adds device to the paired list, replacing an entry with the same id.
func (s *Store) RememberDevice(ctx context.Context, device models.DeviceIdentity) error {
	if device.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	devices, err := s.pairedDevices(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range devices {
		if devices[i].ID == device.ID {
			devices[i] = device
			replaced = true
		}
	}
	if !replaced {
		devices = append(devices, device)
	}

	raw, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("failed to marshal paired devices: %w", err)
	}
	if err := s.backend.Put(ctx, KeyPairedDevices, string(raw)); err != nil {
		return fmt.Errorf("failed to save paired devices: %w", err)
	}
	s.logger.Debug("Paired device remembered", zap.String("device_id", device.ID), zap.Int("count", len(devices)))
	return nil
}

// SetBannerSeen records whether the smartwatch banner was dismissed.
func (s *Store) SetBannerSeen(ctx context.Context, seen bool) error {
	if err := s.backend.Put(ctx, KeyBannerSeen, strconv.FormatBool(seen)); err != nil {
		return fmt.Errorf("failed to save banner flag: %w", err)
	}
	return nil
}

// Reset forgets both flags, as on a fresh install.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{KeyPairedDevices, KeyBannerSeen} {
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	s.logger.Info("Preferences reset")
	return nil
}

func (s *Store) pairedDevices(ctx context.Context) ([]models.DeviceIdentity, error) {
	raw, err := s.backend.Get(ctx, KeyPairedDevices)
	if errors.Is(err, ErrNotFound) {
		return []models.DeviceIdentity{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load paired devices: %w", err)
	}
	var devices []models.DeviceIdentity
	if err := json.Unmarshal([]byte(raw), &devices); err != nil {
		// a corrupt cache is dropped, not fatal
		s.logger.Warn("Discarding unreadable paired device cache", zap.Error(err))
		return []models.DeviceIdentity{}, nil
	}
	if devices == nil {
		devices = []models.DeviceIdentity{}
	}
	return devices, nil
}

func (s *Store) bannerSeen(ctx context.Context) (bool, error) {
	raw, err := s.backend.Get(ctx, KeyBannerSeen)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load banner flag: %w", err)
	}
	seen, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return seen, nil
}
