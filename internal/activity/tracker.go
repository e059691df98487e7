package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

// DefaultStepsGoal daily steps target
const DefaultStepsGoal = 10000

// ErrInvalidExercise exercise input failed validation.
var ErrInvalidExercise = errors.New("invalid exercise")

// Telemetry is the part of telemetry.Service the tracker reads from.
type Telemetry interface {
	Sync(ctx context.Context) (models.TelemetrySnapshot, error)
	SetBaseline(ctx context.Context, steps, calories int) error
	Status() models.Status
	Snapshot() models.TelemetrySnapshot
}

// Config tracker settings
type Config struct {
	StepsGoal        int
	BaselineSteps    int
	BaselineCalories int
}

// Tracker merges device telemetry with the manual exercise log.
type Tracker struct {
	telemetry Telemetry
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	exercises []models.Exercise
}

func NewTracker(t Telemetry, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.StepsGoal <= 0 {
		cfg.StepsGoal = DefaultStepsGoal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		telemetry: t,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		exercises: []models.Exercise{},
	}
}

// Seed hands the configured starting counters to the telemetry service.
func (t *Tracker) Seed(ctx context.Context) error {
	if err := t.telemetry.SetBaseline(ctx, t.cfg.BaselineSteps, t.cfg.BaselineCalories); err != nil {
		return fmt.Errorf("failed to seed baseline: %w", err)
	}
	t.logger.Info("Activity baseline seeded",
		zap.Int("steps", t.cfg.BaselineSteps),
		zap.Int("calories", t.cfg.BaselineCalories),
	)
	return nil
}

// Refresh syncs the device and returns the updated summary.
func (t *Tracker) Refresh(ctx context.Context) (models.ActivitySummary, error) {
	if _, err := t.telemetry.Sync(ctx); err != nil {
		return models.ActivitySummary{}, err
	}
	return t.Summary(), nil
}

// AddExercise validates and appends an exercise to the log.
func (t *Tracker) AddExercise(input models.ExerciseInput) (models.Exercise, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return models.Exercise{}, fmt.Errorf("%w: name is required", ErrInvalidExercise)
	case input.Duration <= 0:
		return models.Exercise{}, fmt.Errorf("%w: duration must be positive", ErrInvalidExercise)
	case input.Calories < 0:
		return models.Exercise{}, fmt.Errorf("%w: calories must not be negative", ErrInvalidExercise)
	}

	now := t.now()
	exercise := models.Exercise{
		ID:       uuid.NewString(),
		Name:     name,
		Duration: input.Duration,
		Calories: input.Calories,
		LoggedAt: now,
		Time:     now.Format("3:04 PM"),
	}

	t.mu.Lock()
	t.exercises = append(t.exercises, exercise)
	t.mu.Unlock()

	t.logger.Info("Exercise logged",
		zap.String("exercise_id", exercise.ID),
		zap.String("name", exercise.Name),
		zap.Int("calories", exercise.Calories),
	)
	return exercise, nil
}

// Summary combines the current snapshot, connection status and exercise log.
func (t *Tracker) Summary() models.ActivitySummary {
	snapshot := t.telemetry.Snapshot()
	status := t.telemetry.Status()

	t.mu.RLock()
	exercises := make([]models.Exercise, len(t.exercises))
	copy(exercises, t.exercises)
	t.mu.RUnlock()

	exerciseCalories := 0
	for _, e := range exercises {
		exerciseCalories += e.Calories
	}

	percentage := float64(snapshot.Steps) / float64(t.cfg.StepsGoal) * 100
	if percentage > 100 {
		percentage = 100
	}
	remaining := t.cfg.StepsGoal - snapshot.Steps
	if remaining < 0 {
		remaining = 0
	}

	return models.ActivitySummary{
		Steps:            snapshot.Steps,
		StepsGoal:        t.cfg.StepsGoal,
		GoalPercentage:   percentage,
		StepsRemaining:   remaining,
		DeviceCalories:   snapshot.Calories,
		ExerciseCalories: exerciseCalories,
		CaloriesBurned:   snapshot.Calories + exerciseCalories,
		Exercises:        exercises,
		LastSync:         status.LastSync,
		IsConnected:      status.IsConnected,
		DeviceName:       status.DeviceName,
	}
}
