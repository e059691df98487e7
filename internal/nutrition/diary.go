package nutrition

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

// Daily defaults
const (
	DefaultCalorieGoal    = 2000
	DefaultBurnedCalories = 350
	DefaultProteinGoal    = 150
	DefaultCarbsGoal      = 250
	DefaultFatGoal        = 65
)

// ErrInvalidFood food input failed validation.
var ErrInvalidFood = errors.New("invalid food")

// Activity supplies calories burned; activity.Tracker satisfies it.
type Activity interface {
	Summary() models.ActivitySummary
}

// Config daily goals. Zero values fall back to the defaults.
type Config struct {
	CalorieGoal    int
	BurnedCalories int // used when no Activity is wired
	ProteinGoal    int
	CarbsGoal      int
	FatGoal        int
}

// Diary is the day's food log.
type Diary struct {
	cfg      Config
	activity Activity
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	foods []models.FoodEntry
}

func NewDiary(cfg Config, activity Activity, logger *zap.Logger) *Diary {
	if cfg.CalorieGoal <= 0 {
		cfg.CalorieGoal = DefaultCalorieGoal
	}
	if cfg.BurnedCalories <= 0 {
		cfg.BurnedCalories = DefaultBurnedCalories
	}
	if cfg.ProteinGoal <= 0 {
		cfg.ProteinGoal = DefaultProteinGoal
	}
	if cfg.CarbsGoal <= 0 {
		cfg.CarbsGoal = DefaultCarbsGoal
	}
	if cfg.FatGoal <= 0 {
		cfg.FatGoal = DefaultFatGoal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diary{
		cfg:      cfg,
		activity: activity,
		logger:   logger,
		now:      time.Now,
		foods:    []models.FoodEntry{},
	}
}

// AddFood validates and appends a food entry. An empty meal means breakfast.
func (d *Diary) AddFood(input models.FoodInput) (models.FoodEntry, error) {
	name := strings.TrimSpace(input.Name)
	meal := input.Meal
	if meal == "" {
		meal = models.MealBreakfast
	}
	switch {
	case name == "":
		return models.FoodEntry{}, fmt.Errorf("%w: name is required", ErrInvalidFood)
	case input.Calories == nil:
		return models.FoodEntry{}, fmt.Errorf("%w: calories are required", ErrInvalidFood)
	case *input.Calories < 0 || input.Protein < 0 || input.Carbs < 0 || input.Fat < 0:
		return models.FoodEntry{}, fmt.Errorf("%w: values must not be negative", ErrInvalidFood)
	case !slices.Contains(models.Meals, meal):
		return models.FoodEntry{}, fmt.Errorf("%w: unknown meal %q", ErrInvalidFood, meal)
	}

	entry := models.FoodEntry{
		ID:       uuid.NewString(),
		Name:     name,
		Calories: *input.Calories,
		Protein:  input.Protein,
		Carbs:    input.Carbs,
		Fat:      input.Fat,
		Meal:     meal,
		LoggedAt: d.now(),
	}

	d.mu.Lock()
	d.foods = append(d.foods, entry)
	d.mu.Unlock()

	d.logger.Info("Food logged",
		zap.String("food_id", entry.ID),
		zap.String("name", entry.Name),
		zap.String("meal", entry.Meal),
		zap.Int("calories", entry.Calories),
	)
	return entry, nil
}

// Summary totals the log against the daily goals.
func (d *Diary) Summary() models.NutritionSummary {
	d.mu.RLock()
	foods := make([]models.FoodEntry, len(d.foods))
	copy(foods, d.foods)
	d.mu.RUnlock()

	var calories, protein, carbs, fat int
	meals := make(map[string]*models.MealStats, len(models.Meals))
	for _, m := range models.Meals {
		meals[m] = &models.MealStats{Meal: m}
	}
	for _, f := range foods {
		calories += f.Calories
		protein += f.Protein
		carbs += f.Carbs
		fat += f.Fat
		if s, ok := meals[f.Meal]; ok {
			s.Calories += f.Calories
			s.Items++
		}
	}

	burned := d.burned()
	budget := d.cfg.CalorieGoal + burned

	stats := make([]models.MealStats, 0, len(models.Meals))
	for _, m := range models.Meals {
		stats = append(stats, *meals[m])
	}

	return models.NutritionSummary{
		Consumed:   calories,
		Goal:       d.cfg.CalorieGoal,
		Burned:     burned,
		Remaining:  budget - calories,
		Percentage: percentage(calories, budget),
		Macros: []models.MacroProgress{
			macro("Protein", protein, d.cfg.ProteinGoal),
			macro("Carbs", carbs, d.cfg.CarbsGoal),
			macro("Fat", fat, d.cfg.FatGoal),
		},
		Meals: stats,
		Foods: foods,
	}
}

func (d *Diary) burned() int {
	if d.activity == nil {
		return d.cfg.BurnedCalories
	}
	return d.activity.Summary().CaloriesBurned
}

func macro(label string, current, goal int) models.MacroProgress {
	return models.MacroProgress{
		Label:      label,
		Current:    current,
		Goal:       goal,
		Unit:       "g",
		Percentage: percentage(current, goal),
	}
}

// percentage of goal, capped at 100
func percentage(current, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	p := float64(current) / float64(goal) * 100
	if p > 100 {
		return 100
	}
	return p
}
