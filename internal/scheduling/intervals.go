package scheduling

import (
	"sort"

	"github.com/localserve/booking-backend/internal/models"
)

// Merge returns the union of the intervals as disjoint ranges sorted by start.
// Touching intervals are joined; empty ones are dropped.
func Merge(intervals []models.Interval) []models.Interval {
	sorted := make([]models.Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.IsEmpty() {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]models.Interval, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// OverlapsAny reports whether target overlaps any interval of a merged, sorted set
func OverlapsAny(merged []models.Interval, target models.Interval) bool {
	// first range ending after target starts; only it can overlap
	i := sort.Search(len(merged), func(i int) bool {
		return merged[i].End.After(target.Start)
	})
	return i < len(merged) && merged[i].Overlaps(target)
}

// BusyIntervals extracts the intervals of bookings that still hold their slot
func BusyIntervals(bookings []models.Booking) []models.Interval {
	busy := make([]models.Interval, 0, len(bookings))
	for i := range bookings {
		if bookings[i].Status == models.BookingStatusCancelled {
			continue
		}
		busy = append(busy, bookings[i].Interval().UTC())
	}
	return busy
}
