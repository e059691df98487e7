package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wearable-sync/internal/activity"
	"wearable-sync/internal/httpapi"
	"wearable-sync/internal/models"
	"wearable-sync/internal/nutrition"
	"wearable-sync/internal/preferences"
	"wearable-sync/internal/progress"
	"wearable-sync/internal/source"
	"wearable-sync/internal/store"
	"wearable-sync/internal/telemetry"
)

type testEnv struct {
	app   *fiber.App
	svc   *telemetry.Service
	mock  *source.MockSource
	prefs *preferences.Store
}

func setupApp(t *testing.T, cfg telemetry.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	mock := source.NewMockSource(source.MockConfig{DeviceID: "w1", Platform: "android"}, logger)
	svc, err := telemetry.New(mock, cfg, logger)
	require.NoError(t, err)

	prefs := preferences.NewStore(preferences.NewKVBackend(store.NewMemoryKV()), logger)
	tracker := activity.NewTracker(svc, activity.Config{BaselineSteps: 8547, BaselineCalories: 430}, logger)
	require.NoError(t, tracker.Seed(context.Background()))
	diary := nutrition.NewDiary(nutrition.Config{}, tracker, logger)
	weights, err := progress.NewWeightLog([]float64{180, 178, 177, 175}, logger)
	require.NoError(t, err)

	ctrl := httpapi.NewController(svc, tracker, diary, weights, prefs, logger)
	return &testEnv{app: httpapi.NewApp(ctrl, logger), svc: svc, mock: mock, prefs: prefs}
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealthCheck(t *testing.T) {
	env := setupApp(t, telemetry.Config{})
	code, body := do(t, env.app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Server is up and running", body["data"])
}

func TestStatus_Initial(t *testing.T) {
	env := setupApp(t, telemetry.Config{})
	code, body := do(t, env.app, http.MethodGet, "/v1/device/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disconnected", body["state"])
	assert.Equal(t, false, body["isConnected"])
	assert.Nil(t, body["lastSync"])
	assert.Equal(t, models.NoDeviceName, body["deviceName"])
}

func TestSync_NotConnected(t *testing.T) {
	env := setupApp(t, telemetry.Config{})
	code, body := do(t, env.app, http.MethodPost, "/v1/device/sync", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_connected", body["kind"])
	assert.Equal(t, 8547, env.svc.Snapshot().Steps)
}

func TestConnectSyncDisconnect(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, body := do(t, env.app, http.MethodPost, "/v1/device/connect", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Wear OS Watch", body["deviceName"])

	prefs, err := env.prefs.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DeviceIdentity{{ID: "w1", Name: "Wear OS Watch"}}, prefs.PairedDevices)

	code, body = do(t, env.app, http.MethodPost, "/v1/device/sync", "")
	require.Equal(t, http.StatusOK, code)
	snapshot := body["snapshot"].(map[string]any)
	steps := int(snapshot["steps"].(float64))
	assert.GreaterOrEqual(t, steps, 8557)
	assert.LessOrEqual(t, steps, 8562)
	status := body["status"].(map[string]any)
	assert.NotNil(t, status["lastSync"])

	code, body = do(t, env.app, http.MethodPost, "/v1/device/disconnect", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["isConnected"])
	assert.Equal(t, models.NoDeviceName, body["deviceName"])
	assert.Nil(t, body["lastSync"])
}

func TestConnect_Failure(t *testing.T) {
	env := setupApp(t, telemetry.Config{})
	env.mock.FailConnect(telemetry.NewConnectionError(telemetry.FailurePermissionDenied, nil))

	code, body := do(t, env.app, http.MethodPost, "/v1/device/connect", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "connection_failed", body["kind"])
	assert.Equal(t, "permission_denied", body["reason"])
	assert.Equal(t, models.StateDisconnected, env.svc.Status().State)
}

func TestConnect_Timeout(t *testing.T) {
	logger := zap.NewNop()
	mock := source.NewMockSource(source.MockConfig{ConnectDelay: time.Hour}, logger)
	svc, err := telemetry.New(mock, telemetry.Config{ConnectTimeout: 20 * time.Millisecond}, logger)
	require.NoError(t, err)
	prefs := preferences.NewStore(preferences.NewKVBackend(store.NewMemoryKV()), logger)
	tracker := activity.NewTracker(svc, activity.Config{}, logger)
	weights, err := progress.NewWeightLog(nil, logger)
	require.NoError(t, err)
	ctrl := httpapi.NewController(svc, tracker, nutrition.NewDiary(nutrition.Config{}, tracker, logger), weights, prefs, logger)
	app := httpapi.NewApp(ctrl, logger)

	code, body := do(t, app, http.MethodPost, "/v1/device/connect", "")
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "timeout", body["reason"])
}

func TestSetBaseline(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, _ := do(t, env.app, http.MethodPut, "/v1/device/baseline", `{"steps":1200,"calories":80}`)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, 1200, env.svc.Snapshot().Steps)

	code, body := do(t, env.app, http.MethodPut, "/v1/device/baseline", `{"steps":-1,"calories":80}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_baseline", body["kind"])

	code, _ = do(t, env.app, http.MethodPut, "/v1/device/baseline", `{"steps":10}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, env.app, http.MethodPut, "/v1/device/baseline", `{oops`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 1200, env.svc.Snapshot().Steps)
}

func TestActivity(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, body := do(t, env.app, http.MethodPost, "/v1/activity/exercises", `{"name":"Morning Run","duration":30,"calories":250}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Morning Run", body["name"])
	assert.NotEmpty(t, body["id"])

	code, _ = do(t, env.app, http.MethodPost, "/v1/activity/exercises", `{"name":"","duration":30,"calories":250}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, env.app, http.MethodGet, "/v1/activity", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(8547), body["steps"])
	assert.Equal(t, float64(680), body["caloriesBurned"])
	assert.Equal(t, float64(1453), body["stepsRemaining"])
	assert.Len(t, body["exercises"], 1)

	code, _ = do(t, env.app, http.MethodPost, "/v1/activity/refresh", "")
	assert.Equal(t, http.StatusConflict, code)

	_, err := env.svc.Connect(context.Background())
	require.NoError(t, err)
	code, body = do(t, env.app, http.MethodPost, "/v1/activity/refresh", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["isConnected"])
}

func TestPreferences(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, body := do(t, env.app, http.MethodGet, "/v1/preferences", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["bannerSeen"])
	assert.Empty(t, body["pairedDevices"])

	code, _ = do(t, env.app, http.MethodPut, "/v1/preferences/banner-seen", "")
	assert.Equal(t, http.StatusNoContent, code)
	_, body = do(t, env.app, http.MethodGet, "/v1/preferences", "")
	assert.Equal(t, true, body["bannerSeen"])

	code, _ = do(t, env.app, http.MethodPut, "/v1/preferences/banner-seen", `{"seen":false}`)
	assert.Equal(t, http.StatusNoContent, code)
	_, body = do(t, env.app, http.MethodGet, "/v1/preferences", "")
	assert.Equal(t, false, body["bannerSeen"])
}

func TestPreferences_Reset(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, _ := do(t, env.app, http.MethodPost, "/v1/device/connect", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, env.app, http.MethodPut, "/v1/preferences/banner-seen", "")
	require.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, env.app, http.MethodDelete, "/v1/preferences", "")
	assert.Equal(t, http.StatusNoContent, code)

	_, body := do(t, env.app, http.MethodGet, "/v1/preferences", "")
	assert.Equal(t, false, body["bannerSeen"])
	assert.Empty(t, body["pairedDevices"])
}

func TestNutrition(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, body := do(t, env.app, http.MethodPost, "/v1/nutrition/foods", `{"name":"Brown Rice","calories":250,"protein":5,"carbs":50,"fat":2,"meal":"Lunch"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Brown Rice", body["name"])
	assert.Equal(t, "Lunch", body["meal"])

	code, body = do(t, env.app, http.MethodPost, "/v1/nutrition/foods", `{"name":"Apple"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "calories")

	code, _ = do(t, env.app, http.MethodPost, "/v1/nutrition/foods", `{"name":"Apple","calories":95,"meal":"Brunch"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, env.app, http.MethodGet, "/v1/nutrition", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(250), body["consumed"])
	// burned comes from the seeded device calories
	assert.Equal(t, float64(430), body["burned"])
	assert.Equal(t, float64(2000+430-250), body["remaining"])
	assert.Len(t, body["meals"], 4)
	assert.Len(t, body["macros"], 3)
}

func TestWeightProgress(t *testing.T) {
	env := setupApp(t, telemetry.Config{})

	code, body := do(t, env.app, http.MethodGet, "/v1/progress/weight", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["lost"])

	code, body = do(t, env.app, http.MethodPost, "/v1/progress/weight", `{"weight":173.5}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Week 5", body["week"])

	code, _ = do(t, env.app, http.MethodPost, "/v1/progress/weight", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, env.app, http.MethodPost, "/v1/progress/weight", `{"weight":-4}`)
	assert.Equal(t, http.StatusBadRequest, code)

	_, body = do(t, env.app, http.MethodGet, "/v1/progress/weight", "")
	assert.Equal(t, float64(6.5), body["lost"])
	assert.Len(t, body["entries"], 5)
}

func TestNotFound(t *testing.T) {
	env := setupApp(t, telemetry.Config{})
	code, body := do(t, env.app, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, float64(http.StatusNotFound), body["code"])
}
