package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DIMO-Network/cloudevent"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
	"wearable-sync/internal/telemetry"
)

const (
	TypeConnected    = "wearable.device.connected"
	TypeDisconnected = "wearable.device.disconnected"
	TypeSynced       = "wearable.device.synced"

	dataVersion = "wearable/v1"
)

// Payload data of a device lifecycle event.
type Payload struct {
	DeviceID   string                    `json:"deviceId"`
	DeviceName string                    `json:"deviceName"`
	Snapshot   *models.TelemetrySnapshot `json:"snapshot,omitempty"`
}

// RedisPublisher appends telemetry lifecycle events to a Redis stream as CloudEvents.
type RedisPublisher struct {
	client *redis.Client
	stream string
	source string
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher; source becomes the CloudEvent source and producer.
func NewRedisPublisher(client *redis.Client, stream, source string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		source: source,
		logger: logger,
	}
}

// Notify implements telemetry.Observer.
func (p *RedisPublisher) Notify(ctx context.Context, event telemetry.Event) error {
	ce, err := p.envelope(event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":      ce.Type,
			"data":      string(body),
			"timestamp": ce.Time.Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", ce.Type, p.stream, err)
	}

	p.logger.Debug("Event published",
		zap.String("stream", p.stream),
		zap.String("type", ce.Type),
		zap.String("message_id", id),
	)
	return nil
}

func (p *RedisPublisher) envelope(event telemetry.Event) (*cloudevent.CloudEvent[json.RawMessage], error) {
	eventType, err := cloudEventType(event.Type)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(Payload{
		DeviceID:   event.Device.ID,
		DeviceName: event.Device.Name,
		Snapshot:   event.Snapshot,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	return &cloudevent.CloudEvent[json.RawMessage]{
		CloudEventHeader: cloudevent.CloudEventHeader{
			SpecVersion:     "1.0",
			Time:            at.UTC(),
			ID:              ksuid.New().String(),
			Type:            eventType,
			Source:          p.source,
			Subject:         event.Device.ID,
			Producer:        p.source,
			DataContentType: "application/json",
			DataVersion:     dataVersion,
		},
		Data: json.RawMessage(data),
	}, nil
}

func cloudEventType(t telemetry.EventType) (string, error) {
	switch t {
	case telemetry.EventConnected:
		return TypeConnected, nil
	case telemetry.EventDisconnected:
		return TypeDisconnected, nil
	case telemetry.EventSynced:
		return TypeSynced, nil
	default:
		return "", fmt.Errorf("unknown event type %q", t)
	}
}
