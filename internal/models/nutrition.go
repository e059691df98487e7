package models

import "time"

// Meal slots in display order
const (
	MealBreakfast = "Breakfast"
	MealLunch     = "Lunch"
	MealDinner    = "Dinner"
	MealSnacks    = "Snacks"
)

// Meals all meal slots, in the order the dashboard lists them
var Meals = []string{MealBreakfast, MealLunch, MealDinner, MealSnacks}

// FoodEntry logged food item
type FoodEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Calories int       `json:"calories"`
	Protein  int       `json:"protein"` // grams
	Carbs    int       `json:"carbs"`
	Fat      int       `json:"fat"`
	Meal     string    `json:"meal"`
	LoggedAt time.Time `json:"loggedAt"`
}

// FoodInput request body for logging food. Calories is required; macros default to 0.
type FoodInput struct {
	Name     string `json:"name"`
	Calories *int   `json:"calories"`
	Protein  int    `json:"protein"`
	Carbs    int    `json:"carbs"`
	Fat      int    `json:"fat"`
	Meal     string `json:"meal"`
}

// MacroProgress one macronutrient against its goal
type MacroProgress struct {
	Label      string  `json:"label"`
	Current    int     `json:"current"`
	Goal       int     `json:"goal"`
	Unit       string  `json:"unit"`
	Percentage float64 `json:"percentage"`
}

// MealStats per-meal totals
type MealStats struct {
	Meal     string `json:"meal"`
	Calories int    `json:"calories"`
	Items    int    `json:"items"`
}

// NutritionSummary dashboard view
type NutritionSummary struct {
	Consumed   int             `json:"consumed"`
	Goal       int             `json:"goal"`
	Burned     int             `json:"burned"`
	Remaining  int             `json:"remaining"` // goal + burned - consumed, may go negative
	Percentage float64         `json:"percentage"`
	Macros     []MacroProgress `json:"macros"`
	Meals      []MealStats     `json:"meals"`
	Foods      []FoodEntry     `json:"foods"`
}

// WeightEntry weekly weigh-in, pounds
type WeightEntry struct {
	Week     string    `json:"week"`
	Weight   float64   `json:"weight"`
	LoggedAt time.Time `json:"loggedAt"`
}

// WeightBar chart bar height relative to the heaviest entry
type WeightBar struct {
	Week             string  `json:"week"`
	Weight           float64 `json:"weight"`
	HeightPercentage float64 `json:"heightPercentage"`
}

// WeightSummary progress view
type WeightSummary struct {
	Entries []WeightEntry `json:"entries"`
	Start   float64       `json:"start"`
	Current float64       `json:"current"`
	Lost    float64       `json:"lost"`
	Max     float64       `json:"max"`
	Bars    []WeightBar   `json:"bars"`
}
