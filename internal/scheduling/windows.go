package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/localserve/booking-backend/internal/models"
)

// DefaultWindows returns the same window on every day of the week
func DefaultWindows(startMinute, endMinute int) []DailyWindow {
	windows := make([]DailyWindow, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		windows = append(windows, DailyWindow{Weekday: wd, Start: startMinute, End: endMinute})
	}
	return windows
}

// WindowsFromWorkingHours converts stored working hours into daily windows
func WindowsFromWorkingHours(hours []models.WorkingHours) ([]DailyWindow, error) {
	windows := make([]DailyWindow, 0, len(hours))
	for _, h := range hours {
		start, err := models.ParseClock(h.StartTime)
		if err != nil {
			return nil, fmt.Errorf("working hours %s: %w", h.ID, err)
		}
		end, err := models.ParseClock(h.EndTime)
		if err != nil {
			return nil, fmt.Errorf("working hours %s: %w", h.ID, err)
		}
		windows = append(windows, DailyWindow{Weekday: h.Weekday, Start: start, End: end})
	}
	return windows, nil
}

// ValidateWindows checks a weekly schedule submitted by a provider:
// weekdays in range, start before end, no two windows of a day overlapping.
func ValidateWindows(inputs []models.WorkingHoursInput) ([]DailyWindow, error) {
	windows := make([]DailyWindow, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("windows[%d]", i)
		if in.Weekday < 0 || in.Weekday > 6 {
			return nil, models.NewValidationError(field, "weekday must be between 0 (Sunday) and 6 (Saturday)")
		}
		start, err := models.ParseClock(in.StartTime)
		if err != nil {
			return nil, models.NewValidationError(field, "%v", err)
		}
		end, err := models.ParseClock(in.EndTime)
		if err != nil {
			return nil, models.NewValidationError(field, "%v", err)
		}
		if end <= start {
			return nil, models.NewValidationError(field, "start_time must be before end_time")
		}
		windows = append(windows, DailyWindow{Weekday: time.Weekday(in.Weekday), Start: start, End: end})
	}

	sorted := make([]DailyWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weekday != sorted[j].Weekday {
			return sorted[i].Weekday < sorted[j].Weekday
		}
		return sorted[i].Start < sorted[j].Start
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Weekday == cur.Weekday && cur.Start < prev.End {
			return nil, models.NewValidationError("windows", "overlapping windows on %s", cur.Weekday)
		}
	}

	return windows, nil
}

// Covers reports whether the interval lies wholly inside one window of the
// local day it starts on. Starts need not fall on a slot boundary.
func Covers(windows []DailyWindow, iv models.Interval, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	start := iv.Start.In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	for _, w := range windowsByWeekday(windows)[day.Weekday()] {
		if !iv.Start.Before(atMinute(day, w.Start)) && !iv.End.After(atMinute(day, w.End)) {
			return true
		}
	}
	return false
}
