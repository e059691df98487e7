package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"wearable-sync/internal/activity"
	"wearable-sync/internal/models"
	"wearable-sync/internal/nutrition"
	"wearable-sync/internal/progress"
	"wearable-sync/internal/telemetry"
)

// NewApp builds the fiber app with all routes registered.
func NewApp(ctrl *Controller, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ErrorHandler(c, err, logger)
		},
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestLogger(logger))

	app.Get("/", HealthCheck)

	v1 := app.Group("/v1")
	v1.Get("/device/status", ctrl.GetStatus)
	v1.Post("/device/connect", ctrl.Connect)
	v1.Post("/device/disconnect", ctrl.Disconnect)
	v1.Post("/device/sync", ctrl.Sync)
	v1.Put("/device/baseline", ctrl.SetBaseline)

	v1.Get("/activity", ctrl.GetActivity)
	v1.Post("/activity/refresh", ctrl.RefreshActivity)
	v1.Post("/activity/exercises", ctrl.AddExercise)

	v1.Get("/nutrition", ctrl.GetNutrition)
	v1.Post("/nutrition/foods", ctrl.AddFood)
	v1.Get("/progress/weight", ctrl.GetWeight)
	v1.Post("/progress/weight", ctrl.AddWeight)

	v1.Get("/preferences", ctrl.GetPreferences)
	v1.Delete("/preferences", ctrl.ResetPreferences)
	v1.Put("/preferences/banner-seen", ctrl.SetBannerSeen)
	return app
}

// HealthCheck reports that the server is up.
func HealthCheck(ctx *fiber.Ctx) error {
	return ctx.JSON(map[string]any{
		"data": "Server is up and running",
	})
}

type codeResp struct {
	Message string           `json:"message"`
	Code    int              `json:"code"`
	Kind    models.ErrorKind `json:"kind,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// ErrorHandler maps service errors to HTTP status codes and writes a JSON body.
func ErrorHandler(ctx *fiber.Ctx, err error, logger *zap.Logger) error {
	resp := codeResp{
		Code:    fiber.StatusInternalServerError,
		Message: "Internal error.",
		Kind:    telemetry.Kind(err),
	}

	var fe *fiber.Error
	var connErr *telemetry.ConnectionError
	switch {
	case errors.As(err, &fe):
		resp.Code = fe.Code
		resp.Message = fe.Message
	case errors.As(err, &connErr):
		resp.Code = fiber.StatusBadGateway
		if connErr.Reason == telemetry.FailureTimeout {
			resp.Code = fiber.StatusGatewayTimeout
		}
		resp.Message = err.Error()
		resp.Reason = string(connErr.Reason)
	case errors.Is(err, telemetry.ErrNotConnected):
		resp.Code = fiber.StatusConflict
		resp.Message = err.Error()
	case errors.Is(err, telemetry.ErrBusy):
		resp.Code = fiber.StatusTooManyRequests
		resp.Message = err.Error()
	case errors.Is(err, telemetry.ErrSyncFailed):
		resp.Code = fiber.StatusBadGateway
		resp.Message = err.Error()
	case errors.Is(err, telemetry.ErrInvalidBaseline),
		errors.Is(err, activity.ErrInvalidExercise),
		errors.Is(err, nutrition.ErrInvalidFood),
		errors.Is(err, progress.ErrInvalidWeight):
		resp.Code = fiber.StatusBadRequest
		resp.Message = err.Error()
	}

	// don't log not found errors
	if resp.Code != fiber.StatusNotFound {
		logger.Warn("caught an error from http request",
			zap.Error(err),
			zap.Int("http_status_code", resp.Code),
			zap.String("http_path", strings.TrimPrefix(ctx.Path(), "/")),
			zap.String("http_method", ctx.Method()),
		)
	}
	return ctx.Status(resp.Code).JSON(resp)
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("http request",
			zap.String("http_method", c.Method()),
			zap.String("http_path", c.Path()),
			zap.Int("http_status_code", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}
