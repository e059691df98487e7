package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
	mqttclient "wearable-sync/internal/mqtt"
	"wearable-sync/internal/telemetry"
)

const defaultDeviceName = "Smartwatch"

// Broker is the subset of the MQTT client the source needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqttclient.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// MQTTConfig topic layout and freshness window
type MQTTConfig struct {
	DeviceID    string
	TopicPrefix string
	QoS         byte
	// ReadingMaxAge how long a pushed reading may be served without a sync request.
	ReadingMaxAge time.Duration
	// ConsumeReadings drops a reading once fetched; required when readings are deltas.
	ConsumeReadings bool
}

// deviceStatus payload of <prefix>/<id>/status
type deviceStatus struct {
	Connected bool   `json:"connected"`
	Name      string `json:"name"`
	Reason    string `json:"reason,omitempty"`
}

type request struct {
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTSource talks to a device bridge over MQTT. The bridge pushes cumulative
// readings on <prefix>/<id>/telemetry and answers pair/sync requests.
type MQTTSource struct {
	broker   Broker
	cfg      MQTTConfig
	logger   *zap.Logger
	readings *cache.Cache

	mu             sync.Mutex
	statusWaiters  []chan deviceStatus
	readingWaiters []chan models.Reading
}

// NewMQTTSource creates a source bound to one device id.
func NewMQTTSource(broker Broker, cfg MQTTConfig, logger *zap.Logger) (*MQTTSource, error) {
	if broker == nil {
		return nil, fmt.Errorf("MQTT broker is nil")
	}
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "wearable"
	}
	if cfg.ReadingMaxAge <= 0 {
		cfg.ReadingMaxAge = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSource{
		broker:   broker,
		cfg:      cfg,
		logger:   logger,
		readings: cache.New(cfg.ReadingMaxAge, 2*cfg.ReadingMaxAge),
	}, nil
}

// Topic returns the topic for kind (status, telemetry, pair, sync, unpair).
func (m *MQTTSource) Topic(kind string) string {
	return strings.Join([]string{m.cfg.TopicPrefix, m.cfg.DeviceID, kind}, "/")
}

// Connect subscribes to the device topics, sends a pair request and waits for
// the device status.
func (m *MQTTSource) Connect(ctx context.Context) (models.DeviceIdentity, error) {
	// register first so a retained status delivered on subscribe is not lost
	waiter := make(chan deviceStatus, 1)
	m.mu.Lock()
	m.statusWaiters = append(m.statusWaiters, waiter)
	m.mu.Unlock()

	if err := m.broker.Subscribe(m.Topic("status"), m.cfg.QoS, m.handleStatus); err != nil {
		m.dropStatusWaiter(waiter)
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureUnavailable, err)
	}
	if err := m.broker.Subscribe(m.Topic("telemetry"), m.cfg.QoS, m.handleTelemetry); err != nil {
		m.dropStatusWaiter(waiter)
		_ = m.unsubscribe()
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureUnavailable, err)
	}

	if err := m.publishRequest("pair"); err != nil {
		m.dropStatusWaiter(waiter)
		_ = m.unsubscribe()
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureUnavailable, err)
	}

	select {
	case <-ctx.Done():
		m.dropStatusWaiter(waiter)
		_ = m.unsubscribe()
		return models.DeviceIdentity{}, ctx.Err()
	case status := <-waiter:
		if !status.Connected {
			_ = m.unsubscribe()
			return models.DeviceIdentity{}, telemetry.NewConnectionError(
				telemetry.ParseConnectFailure(status.Reason),
				fmt.Errorf("device %s refused connection", m.cfg.DeviceID),
			)
		}
		name := status.Name
		if name == "" {
			name = defaultDeviceName
		}
		return models.DeviceIdentity{ID: m.cfg.DeviceID, Name: name}, nil
	}
}

// Fetch serves a fresh cached reading or requests one from the device.
func (m *MQTTSource) Fetch(ctx context.Context, device models.DeviceIdentity) (models.Reading, error) {
	if cached, found := m.readings.Get(device.ID); found {
		if m.cfg.ConsumeReadings {
			m.readings.Delete(device.ID)
		}
		return cached.(models.Reading), nil
	}

	waiter := make(chan models.Reading, 1)
	m.mu.Lock()
	m.readingWaiters = append(m.readingWaiters, waiter)
	m.mu.Unlock()

	if err := m.publishRequest("sync"); err != nil {
		m.dropReadingWaiter(waiter)
		return models.Reading{}, err
	}

	select {
	case <-ctx.Done():
		m.dropReadingWaiter(waiter)
		return models.Reading{}, ctx.Err()
	case reading := <-waiter:
		if m.cfg.ConsumeReadings {
			m.readings.Delete(device.ID)
		}
		return reading, nil
	}
}

// Disconnect unsubscribes and tells the bridge to release the device.
func (m *MQTTSource) Disconnect(_ context.Context, device models.DeviceIdentity) error {
	m.readings.Delete(device.ID)
	return errors.Join(m.unsubscribe(), m.publishRequest("unpair"))
}

func (m *MQTTSource) handleStatus(topic string, payload []byte) error {
	var status deviceStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("failed to unmarshal status on %s: %w", topic, err)
	}
	m.mu.Lock()
	waiters := m.statusWaiters
	m.statusWaiters = nil
	m.mu.Unlock()

	m.logger.Debug("Device status received",
		zap.String("device_id", m.cfg.DeviceID),
		zap.Bool("connected", status.Connected),
		zap.Int("waiters", len(waiters)),
	)
	for _, w := range waiters {
		w <- status
	}
	return nil
}

func (m *MQTTSource) handleTelemetry(topic string, payload []byte) error {
	var reading models.Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to unmarshal telemetry on %s: %w", topic, err)
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	m.readings.Set(m.cfg.DeviceID, reading, cache.DefaultExpiration)

	m.mu.Lock()
	waiters := m.readingWaiters
	m.readingWaiters = nil
	m.mu.Unlock()
	for _, w := range waiters {
		w <- reading
	}
	return nil
}

func (m *MQTTSource) publishRequest(kind string) error {
	payload, err := json.Marshal(request{RequestID: uuid.NewString(), Timestamp: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", kind, err)
	}
	return m.broker.Publish(m.Topic(kind), m.cfg.QoS, false, payload)
}

func (m *MQTTSource) unsubscribe() error {
	return m.broker.Unsubscribe(m.Topic("status"), m.Topic("telemetry"))
}

func (m *MQTTSource) dropStatusWaiter(w chan deviceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.statusWaiters {
		if c == w {
			m.statusWaiters = append(m.statusWaiters[:i], m.statusWaiters[i+1:]...)
			return
		}
	}
}

func (m *MQTTSource) dropReadingWaiter(w chan models.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.readingWaiters {
		if c == w {
			m.readingWaiters = append(m.readingWaiters[:i], m.readingWaiters[i+1:]...)
			return
		}
	}
}
