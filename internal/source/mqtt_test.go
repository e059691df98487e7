package source_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqttclient "wearable-sync/internal/mqtt"
	"wearable-sync/internal/source"
	"wearable-sync/internal/telemetry"
)

// fakeBroker routes publishes to an in-test device bridge.
type fakeBroker struct {
	mu        sync.Mutex
	handlers  map[string]mqttclient.MessageHandler
	published []string
	onPublish func(b *fakeBroker, topic string)
	subErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqttclient.MessageHandler)}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqttclient.MessageHandler) error {
	if b.subErr != nil {
		return b.subErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, _ []byte) error {
	b.mu.Lock()
	b.published = append(b.published, topic)
	hook := b.onPublish
	b.mu.Unlock()
	if hook != nil {
		hook(b, topic)
	}
	return nil
}

func (b *fakeBroker) Unsubscribe(topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.handlers, t)
	}
	return nil
}

func (b *fakeBroker) deliver(topic, payload string) error {
	b.mu.Lock()
	h, ok := b.handlers[topic]
	b.mu.Unlock()
	if !ok {
		return errors.New("no subscriber for " + topic)
	}
	return h(topic, []byte(payload))
}

func (b *fakeBroker) subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.handlers[topic]
	return ok
}

func (b *fakeBroker) publishedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

func newMQTTSource(t *testing.T, b *fakeBroker) *source.MQTTSource {
	t.Helper()
	s, err := source.NewMQTTSource(b, source.MQTTConfig{DeviceID: "w1", TopicPrefix: "wearable"}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestMQTTSource_Topic(t *testing.T) {
	s := newMQTTSource(t, newFakeBroker())
	assert.Equal(t, "wearable/w1/status", s.Topic("status"))
	assert.Equal(t, "wearable/w1/telemetry", s.Topic("telemetry"))
}

func TestNewMQTTSource_Validation(t *testing.T) {
	_, err := source.NewMQTTSource(nil, source.MQTTConfig{DeviceID: "w1"}, nil)
	assert.Error(t, err)
	_, err = source.NewMQTTSource(newFakeBroker(), source.MQTTConfig{}, nil)
	assert.Error(t, err)
}

func TestMQTTSource_ConnectPaired(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true,"name":"Galaxy Watch"}`)
		}
	}
	s := newMQTTSource(t, b)

	device, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "w1", device.ID)
	assert.Equal(t, "Galaxy Watch", device.Name)
	assert.True(t, b.subscribed("wearable/w1/telemetry"))
}

func TestMQTTSource_ConnectDefaultName(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true}`)
		}
	}
	device, err := newMQTTSource(t, b).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Smartwatch", device.Name)
}

func TestMQTTSource_ConnectRefused(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":false,"reason":"permission_denied"}`)
		}
	}
	_, err := newMQTTSource(t, b).Connect(context.Background())
	require.ErrorIs(t, err, telemetry.ErrConnectionFailed)

	var connErr *telemetry.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, telemetry.FailurePermissionDenied, connErr.Reason)
	assert.False(t, b.subscribed("wearable/w1/status"))
}

func TestMQTTSource_ConnectTimeout(t *testing.T) {
	b := newFakeBroker()
	s := newMQTTSource(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, b.subscribed("wearable/w1/status"))
}

func TestMQTTSource_ConnectSubscribeError(t *testing.T) {
	b := newFakeBroker()
	b.subErr = errors.New("broker down")

	_, err := newMQTTSource(t, b).Connect(context.Background())
	var connErr *telemetry.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, telemetry.FailureUnavailable, connErr.Reason)
}

func TestMQTTSource_FetchRequestsReading(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		switch topic {
		case "wearable/w1/pair":
			_ = b.deliver("wearable/w1/status", `{"connected":true,"name":"Watch"}`)
		case "wearable/w1/sync":
			_ = b.deliver("wearable/w1/telemetry", `{"steps":4200,"calories":180,"heartRate":72}`)
		}
	}
	s := newMQTTSource(t, b)
	device, err := s.Connect(context.Background())
	require.NoError(t, err)

	reading, err := s.Fetch(context.Background(), device)
	require.NoError(t, err)
	assert.Equal(t, 4200, reading.Steps)
	assert.Equal(t, 180, reading.Calories)
	require.NotNil(t, reading.HeartRate)
	assert.Equal(t, 72, *reading.HeartRate)
	assert.False(t, reading.Timestamp.IsZero())
	assert.Contains(t, b.publishedTopics(), "wearable/w1/sync")
}

func TestMQTTSource_FetchServesPushedReading(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true}`)
		}
	}
	s := newMQTTSource(t, b)
	device, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.deliver("wearable/w1/telemetry", `{"steps":900,"calories":40}`))

	reading, err := s.Fetch(context.Background(), device)
	require.NoError(t, err)
	assert.Equal(t, 900, reading.Steps)
	assert.NotContains(t, b.publishedTopics(), "wearable/w1/sync")
}

func TestMQTTSource_FetchTimeout(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true}`)
		}
	}
	s := newMQTTSource(t, b)
	device, err := s.Connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Fetch(ctx, device)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMQTTSource_InvalidTelemetryPayload(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true}`)
		}
	}
	s := newMQTTSource(t, b)
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	assert.Error(t, b.deliver("wearable/w1/telemetry", `not-json`))
}

func TestMQTTSource_Disconnect(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(b *fakeBroker, topic string) {
		if topic == "wearable/w1/pair" {
			_ = b.deliver("wearable/w1/status", `{"connected":true}`)
		}
	}
	s := newMQTTSource(t, b)
	device, err := s.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Disconnect(context.Background(), device))
	assert.False(t, b.subscribed("wearable/w1/status"))
	assert.False(t, b.subscribed("wearable/w1/telemetry"))
	assert.Contains(t, b.publishedTopics(), "wearable/w1/unpair")
}
