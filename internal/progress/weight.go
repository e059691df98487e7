package progress

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"wearable-sync/internal/models"
)

// ErrInvalidWeight weight input failed validation.
var ErrInvalidWeight = errors.New("invalid weight")

// maxWeight upper bound for a plausible weigh-in, pounds
const maxWeight = 1500

// WeightLog keeps weekly weigh-ins; entry N is labelled "Week N".
type WeightLog struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries []models.WeightEntry
}

// NewWeightLog creates a log, optionally pre-filled with earlier weigh-ins.
func NewWeightLog(initial []float64, logger *zap.Logger) (*WeightLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &WeightLog{
		logger:  logger,
		now:     time.Now,
		entries: []models.WeightEntry{},
	}
	for _, weight := range initial {
		if _, err := w.Add(weight); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Add appends a weigh-in as the next week.
func (w *WeightLog) Add(weight float64) (models.WeightEntry, error) {
	if math.IsNaN(weight) || weight <= 0 || weight > maxWeight {
		return models.WeightEntry{}, fmt.Errorf("%w: %v", ErrInvalidWeight, weight)
	}

	w.mu.Lock()
	entry := models.WeightEntry{
		Week:     fmt.Sprintf("Week %d", len(w.entries)+1),
		Weight:   weight,
		LoggedAt: w.now(),
	}
	w.entries = append(w.entries, entry)
	w.mu.Unlock()

	w.logger.Info("Weight logged", zap.String("week", entry.Week), zap.Float64("weight", weight))
	return entry, nil
}

// Summary reports start, current and lost weight plus chart bars.
func (w *WeightLog) Summary() models.WeightSummary {
	w.mu.RLock()
	entries := make([]models.WeightEntry, len(w.entries))
	copy(entries, w.entries)
	w.mu.RUnlock()

	summary := models.WeightSummary{Entries: entries, Bars: []models.WeightBar{}}
	if len(entries) == 0 {
		return summary
	}

	summary.Start = entries[0].Weight
	summary.Current = entries[len(entries)-1].Weight
	summary.Lost = summary.Start - summary.Current
	for _, e := range entries {
		summary.Max = math.Max(summary.Max, e.Weight)
	}
	for _, e := range entries {
		summary.Bars = append(summary.Bars, models.WeightBar{
			Week:             e.Week,
			Weight:           e.Weight,
			HeightPercentage: e.Weight / summary.Max * 100,
		})
	}
	return summary
}
