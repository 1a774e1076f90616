// Package workdays classifies calendar spans into working and weekend days
// according to the institution's weekly rest-day policy.
package workdays

import (
	"fmt"
	"strings"
	"time"
)

// Weekend is the set of weekly rest days.
type Weekend struct {
	days [7]bool
}

// NewWeekend builds a weekend set from weekday values.
func NewWeekend(days ...time.Weekday) Weekend {
	var w Weekend
	for _, d := range days {
		w.days[int(d)%7] = true
	}
	return w
}

// ParseWeekend builds a weekend set from day names ("Friday", "Saturday").
// Unknown names are rejected so a typo in configuration cannot silently
// change the policy.
func ParseWeekend(names []string) (Weekend, error) {
	byName := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		d, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return Weekend{}, fmt.Errorf("unknown weekday name: %q", name)
		}
		days = append(days, d)
	}
	return NewWeekend(days...), nil
}

// Contains reports whether the given weekday is a rest day.
func (w Weekend) Contains(d time.Weekday) bool {
	return w.days[int(d)%7]
}

// Span is the classification of an inclusive date range.
type Span struct {
	TotalDays   int `json:"total_days"`
	WorkingDays int `json:"working_days"`
	WeekendDays int `json:"weekend_days"`
}

// Count classifies every calendar day in [start, end] as working or weekend.
// Only the calendar date of each argument is considered; the result is
// independent of clock time and time zone offsets within the same date.
func Count(start, end time.Time, weekend Weekend) (Span, error) {
	from := Date(start)
	to := Date(end)
	if from.After(to) {
		return Span{}, fmt.Errorf("start date %s after end date %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	var span Span
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		span.TotalDays++
		if weekend.Contains(d.Weekday()) {
			span.WeekendDays++
		} else {
			span.WorkingDays++
		}
	}
	return span, nil
}

// Date normalises a timestamp to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
