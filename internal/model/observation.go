package model

// ItemStatus records one item on one day: whether the user marked it packed
// and, once judged, whether it was actually needed. NeededLabel stays nil
// until a human judgment is recorded; unlabeled rows never reach training.
type ItemStatus struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	ItemID       int64  `json:"item_id"`
	ContextID    int64  `json:"context_id"`
	NeededLabel  *bool  `json:"needed_label"`
	Packed       bool   `json:"packed"`
	ReminderSent bool   `json:"reminder_sent"`
	Feedback     string `json:"feedback,omitempty"`
}

// Observation is one labeled training row: the join of a day context, an
// item, and its recorded outcome.
type Observation struct {
	Weekday         int  `json:"weekday"`
	IsHoliday       int  `json:"is_holiday"`
	HasWorkEvent    int  `json:"has_work_event"`
	HasGymEvent     int  `json:"has_gym_event"`
	PriorityOrdinal int  `json:"priority"`
	Needed          bool `json:"needed_label"`
	Packed          bool `json:"packed"`
}

// Context returns the observation's day-context tuple.
func (o Observation) Context() ContextFeatures {
	return ContextFeatures{
		Weekday:      o.Weekday,
		IsHoliday:    o.IsHoliday,
		HasWorkEvent: o.HasWorkEvent,
		HasGymEvent:  o.HasGymEvent,
	}
}

// Forgot reports whether the item was needed but not packed. This derived
// label is the forget-classifier target; it is never stored.
func (o Observation) Forgot() bool {
	return o.Needed && !o.Packed
}
