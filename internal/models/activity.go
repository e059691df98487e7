package models

import "time"

// Exercise manually logged workout
type Exercise struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Duration int       `json:"duration"` // minutes
	Calories int       `json:"calories"`
	LoggedAt time.Time `json:"loggedAt"`
	Time     string    `json:"time"` // e.g. "7:00 AM"
}

// ExerciseInput request body for logging an exercise
type ExerciseInput struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Calories int    `json:"calories"`
}

// ActivitySummary activity view for the current session
type ActivitySummary struct {
	Steps            int        `json:"steps"`
	StepsGoal        int        `json:"stepsGoal"`
	GoalPercentage   float64    `json:"goalPercentage"`
	StepsRemaining   int        `json:"stepsRemaining"`
	DeviceCalories   int        `json:"deviceCalories"`
	ExerciseCalories int        `json:"exerciseCalories"`
	CaloriesBurned   int        `json:"caloriesBurned"`
	Exercises        []Exercise `json:"exercises"`
	LastSync         *time.Time `json:"lastSync"`
	IsConnected      bool       `json:"isConnected"`
	DeviceName       string     `json:"deviceName"`
}

// Preferences the two persisted UI flags
type Preferences struct {
	PairedDevices []DeviceIdentity `json:"pairedDevices"`
	BannerSeen    bool             `json:"bannerSeen"`
}
