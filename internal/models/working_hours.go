package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkingHours is one working window of a provider on a given weekday
type WorkingHours struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	ProviderID uuid.UUID    `db:"provider_id" json:"provider_id"`
	Weekday    time.Weekday `db:"weekday" json:"weekday"`       // 0 = Sunday
	StartTime  string       `db:"start_time" json:"start_time"` // HH:MM
	EndTime    string       `db:"end_time" json:"end_time"`     // HH:MM
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// WorkingHoursInput is one window in PUT /providers/me/working-hours
type WorkingHoursInput struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// ReplaceWorkingHoursRequest replaces a provider's whole weekly schedule
type ReplaceWorkingHoursRequest struct {
	Windows []WorkingHoursInput `json:"windows"`
}

// ParseClock converts "HH:MM" or "HH:MM:SS" into minutes after midnight.
// "24:00" is accepted as the end of the day.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	if len(parts) == 3 {
		if seconds, err := strconv.Atoi(parts[2]); err != nil || seconds != 0 {
			return 0, fmt.Errorf("seconds are not supported in %q", value)
		}
	}

	if minutes < 0 || minutes > 59 || hours < 0 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("time of day %q out of range", value)
	}

	return hours*60 + minutes, nil
}

// FormatClock converts minutes after midnight into "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
