package domain

import "time"

// PeriodType is the time window a ranking is computed over.
type PeriodType string

// PeriodType constants.
const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodAllTime PeriodType = "all_time"
)

// AllTimeEpoch is the fixed start of the all_time window.
var AllTimeEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Valid returns true if the period is a recognized value.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	default:
		return false
	}
}

// Window is a resolved ranking period. Start is inclusive, End is exclusive.
// ExpiresAt is when a snapshot for this window should be refreshed.
type Window struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Window resolves the period relative to now, in now's location.
func (p PeriodType) Window(now time.Time) Window {
	// Normalize to start of day in the reference timezone
	year, month, day := now.Date()
	loc := now.Location()
	today := time.Date(year, month, day, 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	switch p {
	case PeriodDaily:
		return Window{Start: today, End: tomorrow, ExpiresAt: tomorrow}
	case PeriodWeekly:
		// Week starts on Monday (ISO standard)
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		startOfWeek := today.AddDate(0, 0, -(weekday - 1))
		return Window{
			Start:     startOfWeek,
			End:       startOfWeek.AddDate(0, 0, 7),
			ExpiresAt: tomorrow,
		}
	case PeriodMonthly:
		startOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		return Window{
			Start:     startOfMonth,
			End:       startOfMonth.AddDate(0, 1, 0),
			ExpiresAt: tomorrow,
		}
	case PeriodAllTime:
		return Window{
			Start:     AllTimeEpoch.In(loc),
			End:       now,
			ExpiresAt: today.AddDate(0, 0, 7),
		}
	default:
		return Window{Start: today, End: tomorrow, ExpiresAt: tomorrow}
	}
}
