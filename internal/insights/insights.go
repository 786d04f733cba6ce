// Package insights aggregates a user's labeled packing history into
// per-item statistics and a most-forgotten ranking.
package insights

import (
	"sort"

	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

// ItemStats summarizes one item's labeled history.
type ItemStats struct {
	ItemID           int64   `json:"item_id"`
	Name             string  `json:"name"`
	LabeledDays      int     `json:"labeled_days"`
	NeededDays       int     `json:"needed_days"`
	PackedWhenNeeded int     `json:"packed_when_needed"`
	ForgottenDays    int     `json:"forgotten_days"`
	ForgetRate       float64 `json:"forget_rate"`
}

// Report is the full insights payload: every item's stats plus the
// most-forgotten ordering.
type Report struct {
	Items        []ItemStats `json:"items"`
	TopForgotten []ItemStats `json:"top_forgotten"`
	TotalLabeled int         `json:"total_labeled"`
}

// topForgottenLimit caps the most-forgotten list.
const topForgottenLimit = 5

// Build aggregates status history into a Report. Unlabeled rows count
// toward nothing; an item with no needed days has forget rate 0.
func Build(history []store.HistoryRecord) Report {
	byItem := make(map[int64]*ItemStats)
	var order []int64

	report := Report{}
	for _, rec := range history {
		if rec.NeededLabel == nil {
			continue
		}
		stats, ok := byItem[rec.ItemID]
		if !ok {
			stats = &ItemStats{ItemID: rec.ItemID, Name: rec.ItemName}
			byItem[rec.ItemID] = stats
			order = append(order, rec.ItemID)
		}
		stats.LabeledDays++
		report.TotalLabeled++
		if !*rec.NeededLabel {
			continue
		}
		stats.NeededDays++
		if rec.Packed {
			stats.PackedWhenNeeded++
		} else {
			stats.ForgottenDays++
		}
	}

	report.Items = make([]ItemStats, 0, len(order))
	for _, id := range order {
		stats := byItem[id]
		if stats.NeededDays > 0 {
			stats.ForgetRate = float64(stats.ForgottenDays) / float64(stats.NeededDays)
		}
		report.Items = append(report.Items, *stats)
	}

	report.TopForgotten = topForgotten(report.Items)
	return report
}

// topForgotten ranks items by forget rate, then forgotten-day count, keeping
// only items forgotten at least once.
func topForgotten(items []ItemStats) []ItemStats {
	var ranked []ItemStats
	for _, stats := range items {
		if stats.ForgottenDays > 0 {
			ranked = append(ranked, stats)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ForgetRate != ranked[j].ForgetRate {
			return ranked[i].ForgetRate > ranked[j].ForgetRate
		}
		return ranked[i].ForgottenDays > ranked[j].ForgottenDays
	})
	if len(ranked) > topForgottenLimit {
		ranked = ranked[:topForgottenLimit]
	}
	return ranked
}

// DaySummary describes today's context in words for the insights payload.
type DaySummary struct {
	Date    string   `json:"date"`
	DayType string   `json:"day_type"`
	Flags   []string `json:"flags"`
}

// Summarize renders a day context for display.
func Summarize(dc *model.DayContext) DaySummary {
	if dc == nil {
		return DaySummary{}
	}
	summary := DaySummary{Date: store.DateKey(dc.Date)}
	if dc.Weekday >= 5 {
		summary.DayType = "weekend"
	} else {
		summary.DayType = "weekday"
	}
	if dc.IsHoliday {
		summary.Flags = append(summary.Flags, "holiday")
	}
	if dc.HasWorkEvent {
		summary.Flags = append(summary.Flags, "work event")
	}
	if dc.HasGymEvent {
		summary.Flags = append(summary.Flags, "gym event")
	}
	return summary
}
