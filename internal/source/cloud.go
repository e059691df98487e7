package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
	"wearable-sync/internal/telemetry"
)

// CloudConfig vendor health API settings
type CloudConfig struct {
	BaseURL  string
	Token    string
	DeviceID string
	Timeout  time.Duration
}

type cloudDevice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Paired bool   `json:"paired"`
}

type cloudError struct {
	Message string `json:"message"`
}

// CloudSource reads daily cumulative totals from a vendor health API.
type CloudSource struct {
	client   *resty.Client
	deviceID string
	logger   *zap.Logger
	now      func() time.Time
}

// NewCloudSource creates a source for one device registered with the vendor API.
func NewCloudSource(cfg CloudConfig, logger *zap.Logger) (*CloudSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("cloud API base URL is required")
	}
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetError(&cloudError{})
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &CloudSource{
		client:   client,
		deviceID: cfg.DeviceID,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Connect checks that the device exists and is paired with the account.
func (c *CloudSource) Connect(ctx context.Context) (models.DeviceIdentity, error) {
	var device cloudDevice
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", c.deviceID).
		SetResult(&device).
		Get("/v1/devices/{id}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.DeviceIdentity{}, ctxErr
		}
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureDeviceNotFound, apiError(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailurePermissionDenied, apiError(resp))
	default:
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailureUnavailable, apiError(resp))
	}

	if !device.Paired {
		return models.DeviceIdentity{}, telemetry.NewConnectionError(telemetry.FailurePairingDenied,
			fmt.Errorf("device %s is not paired", c.deviceID))
	}
	name := device.Name
	if name == "" {
		name = defaultDeviceName
	}
	return models.DeviceIdentity{ID: c.deviceID, Name: name}, nil
}

// Fetch returns today's cumulative totals.
func (c *CloudSource) Fetch(ctx context.Context, device models.DeviceIdentity) (models.Reading, error) {
	var reading models.Reading
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", device.ID).
		SetQueryParam("date", c.now().Format("2006-01-02")).
		SetResult(&reading).
		Get("/v1/devices/{id}/summary")
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to fetch summary: %w", err)
	}
	if resp.IsError() {
		return models.Reading{}, fmt.Errorf("failed to fetch summary: %w", apiError(resp))
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = c.now()
	}
	c.logger.Debug("Cloud summary fetched",
		zap.String("device_id", device.ID),
		zap.Int("steps", reading.Steps),
	)
	return reading, nil
}

// Disconnect is local only; the vendor pairing is left intact.
func (c *CloudSource) Disconnect(_ context.Context, _ models.DeviceIdentity) error {
	return nil
}

func apiError(resp *resty.Response) error {
	if e, ok := resp.Error().(*cloudError); ok && e != nil && e.Message != "" {
		return fmt.Errorf("cloud API returned %d: %s", resp.StatusCode(), e.Message)
	}
	return errors.New("cloud API returned " + resp.Status())
}
