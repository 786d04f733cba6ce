package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextWeekday(t *testing.T) {
	// 2026-08-24 is a Monday.
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, ContextWeekday(monday))
	assert.Equal(t, 5, ContextWeekday(monday.AddDate(0, 0, 5))) // Saturday
	assert.Equal(t, 6, ContextWeekday(monday.AddDate(0, 0, 6))) // Sunday
}

func TestDayContext_Features(t *testing.T) {
	ctx := DayContext{Weekday: 3, IsHoliday: true, HasWorkEvent: false, HasGymEvent: true}
	got := ctx.Features()
	assert.Equal(t, ContextFeatures{Weekday: 3, IsHoliday: 1, HasWorkEvent: 0, HasGymEvent: 1}, got)
	assert.Equal(t, []float64{3, 1, 0, 1}, got.Vector())
}
