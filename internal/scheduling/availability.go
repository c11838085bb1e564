package scheduling

import (
	"sort"
	"time"

	"github.com/localserve/booking-backend/internal/models"
)

// DailyWindow is a working window on one weekday, in minutes after local midnight
type DailyWindow struct {
	Weekday time.Weekday
	Start   int
	End     int
}

// Input describes one availability query
type Input struct {
	Duration time.Duration
	Windows  []DailyWindow
	Busy     []models.Interval
	From     time.Time
	To       time.Time
	Location *time.Location
}

// Calculate returns the free slots of Duration inside [From, To).
//
// Every matching window of every calendar day touched by the range is split
// into consecutive buckets starting at the window start. A trailing partial
// bucket is dropped and buckets never cross into the next day. A bucket is
// free when it overlaps none of the busy intervals. Only buckets lying wholly
// inside the range are returned, sorted by start and expressed in UTC.
func Calculate(in Input) []models.Slot {
	if in.Duration <= 0 || !in.From.Before(in.To) || len(in.Windows) == 0 {
		return []models.Slot{}
	}

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	windows := windowsByWeekday(in.Windows)
	busy := Merge(in.Busy)
	slots := []models.Slot{}

	first := in.From.In(loc)
	last := in.To.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

	for !day.After(lastDay) {
		for _, w := range windows[day.Weekday()] {
			windowStart := atMinute(day, w.Start)
			windowEnd := atMinute(day, w.End)

			for start := windowStart; ; start = start.Add(in.Duration) {
				end := start.Add(in.Duration)
				if end.After(windowEnd) {
					break
				}
				if start.Before(in.From) || end.After(in.To) {
					continue
				}
				bucket := models.Slot{Start: start.UTC(), End: end.UTC()}
				if !OverlapsAny(busy, bucket) {
					slots = append(slots, bucket)
				}
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// windowsByWeekday groups windows per weekday sorted by start, dropping empty ones
func windowsByWeekday(windows []DailyWindow) map[time.Weekday][]DailyWindow {
	grouped := make(map[time.Weekday][]DailyWindow, 7)
	for _, w := range windows {
		if w.End <= w.Start {
			continue
		}
		grouped[w.Weekday] = append(grouped[w.Weekday], w)
	}
	for wd := range grouped {
		list := grouped[wd]
		sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	}
	return grouped
}

// atMinute builds the wall-clock instant minutes after midnight of day.
// time.Date normalizes DST gaps and minute 1440 into the next midnight.
func atMinute(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
