package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

// DeviceService is the telemetry service as seen by the API.
type DeviceService interface {
	Connect(ctx context.Context) (models.ConnectResult, error)
	Disconnect()
	Sync(ctx context.Context) (models.TelemetrySnapshot, error)
	SetBaseline(ctx context.Context, steps, calories int) error
	Status() models.Status
	Device() models.DeviceIdentity
}

// ActivityTracker serves the activity view.
type ActivityTracker interface {
	Summary() models.ActivitySummary
	Refresh(ctx context.Context) (models.ActivitySummary, error)
	AddExercise(input models.ExerciseInput) (models.Exercise, error)
}

// FoodDiary serves the nutrition dashboard.
type FoodDiary interface {
	Summary() models.NutritionSummary
	AddFood(input models.FoodInput) (models.FoodEntry, error)
}

// WeightLog serves the weight progress view.
type WeightLog interface {
	Summary() models.WeightSummary
	Add(weight float64) (models.WeightEntry, error)
}

// PreferencesStore persists the UI flags.
type PreferencesStore interface {
	Get(ctx context.Context) (models.Preferences, error)
	RememberDevice(ctx context.Context, device models.DeviceIdentity) error
	SetBannerSeen(ctx context.Context, seen bool) error
	Reset(ctx context.Context) error
}

type Controller struct {
	device      DeviceService
	tracker     ActivityTracker
	diary       FoodDiary
	weights     WeightLog
	preferences PreferencesStore
	logger      *zap.Logger
}

func NewController(device DeviceService, tracker ActivityTracker, diary FoodDiary, weights WeightLog, prefs PreferencesStore, logger *zap.Logger) *Controller {
	return &Controller{
		device:      device,
		tracker:     tracker,
		diary:       diary,
		weights:     weights,
		preferences: prefs,
		logger:      logger,
	}
}

type baselineRequest struct {
	Steps    *int `json:"steps"`
	Calories *int `json:"calories"`
}

type weightRequest struct {
	Weight *float64 `json:"weight"`
}

type bannerRequest struct {
	Seen *bool `json:"seen"`
}

type syncResponse struct {
	Snapshot models.TelemetrySnapshot `json:"snapshot"`
	Status   models.Status            `json:"status"`
}

// GetStatus GET /v1/device/status
func (c *Controller) GetStatus(ctx *fiber.Ctx) error {
	return ctx.JSON(c.device.Status())
}

// Connect POST /v1/device/connect
func (c *Controller) Connect(ctx *fiber.Ctx) error {
	result, err := c.device.Connect(ctx.UserContext())
	if err != nil {
		return err
	}
	if device := c.device.Device(); !device.IsZero() {
		if err := c.preferences.RememberDevice(ctx.UserContext(), device); err != nil {
			// the connection itself succeeded
			c.logger.Warn("Failed to remember paired device", zap.String("device_id", device.ID), zap.Error(err))
		}
	}
	return ctx.JSON(result)
}

// Disconnect POST /v1/device/disconnect
func (c *Controller) Disconnect(ctx *fiber.Ctx) error {
	c.device.Disconnect()
	return ctx.JSON(c.device.Status())
}

// Sync POST /v1/device/sync
func (c *Controller) Sync(ctx *fiber.Ctx) error {
	snapshot, err := c.device.Sync(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(syncResponse{Snapshot: snapshot, Status: c.device.Status()})
}

// SetBaseline PUT /v1/device/baseline
func (c *Controller) SetBaseline(ctx *fiber.Ctx) error {
	var req baselineRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Steps == nil || req.Calories == nil {
		return fiber.NewError(fiber.StatusBadRequest, "steps and calories are required")
	}
	if err := c.device.SetBaseline(ctx.UserContext(), *req.Steps, *req.Calories); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetActivity GET /v1/activity
func (c *Controller) GetActivity(ctx *fiber.Ctx) error {
	return ctx.JSON(c.tracker.Summary())
}

// RefreshActivity POST /v1/activity/refresh
func (c *Controller) RefreshActivity(ctx *fiber.Ctx) error {
	summary, err := c.tracker.Refresh(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(summary)
}

// AddExercise POST /v1/activity/exercises
func (c *Controller) AddExercise(ctx *fiber.Ctx) error {
	var input models.ExerciseInput
	if err := ctx.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	exercise, err := c.tracker.AddExercise(input)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(exercise)
}

// GetNutrition GET /v1/nutrition
func (c *Controller) GetNutrition(ctx *fiber.Ctx) error {
	return ctx.JSON(c.diary.Summary())
}

// AddFood POST /v1/nutrition/foods
func (c *Controller) AddFood(ctx *fiber.Ctx) error {
	var input models.FoodInput
	if err := ctx.BodyParser(&input); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	entry, err := c.diary.AddFood(input)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(entry)
}

// GetWeight GET /v1/progress/weight
func (c *Controller) GetWeight(ctx *fiber.Ctx) error {
	return ctx.JSON(c.weights.Summary())
}

// AddWeight POST /v1/progress/weight
func (c *Controller) AddWeight(ctx *fiber.Ctx) error {
	var req weightRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Weight == nil {
		return fiber.NewError(fiber.StatusBadRequest, "weight is required")
	}
	entry, err := c.weights.Add(*req.Weight)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(entry)
}

// GetPreferences GET /v1/preferences
func (c *Controller) GetPreferences(ctx *fiber.Ctx) error {
	prefs, err := c.preferences.Get(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(prefs)
}

// SetBannerSeen PUT /v1/preferences/banner-seen; an empty body marks it seen.
func (c *Controller) SetBannerSeen(ctx *fiber.Ctx) error {
	seen := true
	if len(ctx.Body()) > 0 {
		var req bannerRequest
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Seen != nil {
			seen = *req.Seen
		}
	}
	if err := c.preferences.SetBannerSeen(ctx.UserContext(), seen); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// ResetPreferences DELETE /v1/preferences
func (c *Controller) ResetPreferences(ctx *fiber.Ctx) error {
	if err := c.preferences.Reset(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
