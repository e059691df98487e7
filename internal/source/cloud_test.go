package source_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
	"wearable-sync/internal/source"
	"wearable-sync/internal/telemetry"
)

func newCloudServer(t *testing.T, device func(w http.ResponseWriter), summary func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/devices/w1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad token"}`))
			return
		}
		device(w)
	})
	mux.HandleFunc("/v1/devices/w1/summary", func(w http.ResponseWriter, r *http.Request) {
		summary(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newCloudSource(t *testing.T, url, token string) *source.CloudSource {
	t.Helper()
	s, err := source.NewCloudSource(source.CloudConfig{BaseURL: url, Token: token, DeviceID: "w1", Timeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func connectReason(t *testing.T, err error) telemetry.ConnectFailure {
	t.Helper()
	require.ErrorIs(t, err, telemetry.ErrConnectionFailed)
	var connErr *telemetry.ConnectionError
	require.ErrorAs(t, err, &connErr)
	return connErr.Reason
}

func TestCloudSource_Connect(t *testing.T) {
	srv := newCloudServer(t, func(w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "w1", "name": "Fitbit Sense", "paired": true})
	}, nil)

	device, err := newCloudSource(t, srv.URL, "secret").Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DeviceIdentity{ID: "w1", Name: "Fitbit Sense"}, device)
}

func TestCloudSource_ConnectFailures(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		status int
		body   map[string]any
		want   telemetry.ConnectFailure
	}{
		{name: "unauthorized", token: "wrong", want: telemetry.FailurePermissionDenied},
		{name: "not found", token: "secret", status: http.StatusNotFound, body: map[string]any{"message": "no such device"}, want: telemetry.FailureDeviceNotFound},
		{name: "not paired", token: "secret", status: http.StatusOK, body: map[string]any{"id": "w1", "paired": false}, want: telemetry.FailurePairingDenied},
		{name: "server error", token: "secret", status: http.StatusBadGateway, body: map[string]any{}, want: telemetry.FailureUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCloudServer(t, func(w http.ResponseWriter) {
				writeJSON(w, tt.status, tt.body)
			}, nil)

			_, err := newCloudSource(t, srv.URL, tt.token).Connect(context.Background())
			assert.Equal(t, tt.want, connectReason(t, err))
		})
	}
}

func TestCloudSource_ConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newCloudSource(t, url, "secret").Connect(context.Background())
	assert.Equal(t, telemetry.FailureUnavailable, connectReason(t, err))
}

func TestCloudSource_Fetch(t *testing.T) {
	var gotDate string
	srv := newCloudServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		writeJSON(w, http.StatusOK, map[string]any{"steps": 8123, "calories": 412, "distance": 5.4})
	})

	reading, err := newCloudSource(t, srv.URL, "secret").Fetch(context.Background(), models.DeviceIdentity{ID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, 8123, reading.Steps)
	assert.Equal(t, 412, reading.Calories)
	require.NotNil(t, reading.Distance)
	assert.InDelta(t, 5.4, *reading.Distance, 0.001)
	assert.Nil(t, reading.HeartRate)
	assert.False(t, reading.Timestamp.IsZero())

	_, err = time.Parse("2006-01-02", gotDate)
	assert.NoError(t, err)
}

func TestCloudSource_FetchError(t *testing.T) {
	srv := newCloudServer(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "maintenance"})
	})

	_, err := newCloudSource(t, srv.URL, "secret").Fetch(context.Background(), models.DeviceIdentity{ID: "w1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestNewCloudSource_Validation(t *testing.T) {
	_, err := source.NewCloudSource(source.CloudConfig{DeviceID: "w1"}, nil)
	assert.Error(t, err)
	_, err = source.NewCloudSource(source.CloudConfig{BaseURL: "http://x"}, nil)
	assert.Error(t, err)
}
