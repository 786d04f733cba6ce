package model

import (
	"fmt"
	"time"
)

// DayContext describes one (user, calendar date) pair: what kind of day it
// is. Created lazily on first access to a date; only the event flags are
// mutable afterwards.
type DayContext struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Date         time.Time `json:"date"`
	Weekday      int       `json:"weekday"` // 0=Monday .. 6=Sunday
	IsHoliday    bool      `json:"is_holiday"`
	HasWorkEvent bool      `json:"has_work_event"`
	HasGymEvent  bool      `json:"has_gym_event"`
}

// Features returns the 4-field numeric tuple the prediction engine consumes.
func (c DayContext) Features() ContextFeatures {
	return ContextFeatures{
		Weekday:      c.Weekday,
		IsHoliday:    boolToInt(c.IsHoliday),
		HasWorkEvent: boolToInt(c.HasWorkEvent),
		HasGymEvent:  boolToInt(c.HasGymEvent),
	}
}

// ContextWeekday converts a date to the 0=Monday..6=Sunday encoding used
// throughout the training data.
func ContextWeekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// ContextFeatures is the deduplicated day-context tuple used for clustering
// and as model input. Flags are already normalized to {0,1}.
type ContextFeatures struct {
	Weekday      int `json:"weekday"`
	IsHoliday    int `json:"is_holiday"`
	HasWorkEvent int `json:"has_work_event"`
	HasGymEvent  int `json:"has_gym_event"`
}

// Key returns a stable exact-equality key for lookup tables.
func (f ContextFeatures) Key() string {
	return fmt.Sprintf("%d|%d|%d|%d", f.Weekday, f.IsHoliday, f.HasWorkEvent, f.HasGymEvent)
}

// Vector returns the tuple as a float slice in canonical column order.
func (f ContextFeatures) Vector() []float64 {
	return []float64{
		float64(f.Weekday),
		float64(f.IsHoliday),
		float64(f.HasWorkEvent),
		float64(f.HasGymEvent),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
