package model

// Priority classifies how important an item is to the user's day.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// priorityOrdinals maps each priority to its ordinal feature encoding.
// Unrecognized priorities fall back to the medium weight.
var priorityOrdinals = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

// heuristicNeed maps each priority to the need probability used when no
// trained model is available. Unrecognized priorities fall back to 0.5.
var heuristicNeed = map[Priority]float64{
	PriorityLow:    0.3,
	PriorityMedium: 0.5,
	PriorityHigh:   0.7,
}

// Ordinal returns the numeric feature encoding for the priority.
func (p Priority) Ordinal() int {
	if ord, ok := priorityOrdinals[p]; ok {
		return ord
	}
	return priorityOrdinals[PriorityMedium]
}

// HeuristicNeed returns the priority-keyed need probability used by the
// fallback predictor.
func (p Priority) HeuristicNeed() float64 {
	if prob, ok := heuristicNeed[p]; ok {
		return prob
	}
	return heuristicNeed[PriorityMedium]
}

// Item is one entry on a user's packing checklist.
type Item struct {
	ID       int64    `json:"id"`
	UserID   int64    `json:"user_id"`
	Name     string   `json:"name"`
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Active   bool     `json:"active"`
}
