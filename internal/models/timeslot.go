package models

import (
	"fmt"
	"time"
)

// TimeSlot is a recurring weekly teaching window (1=Monday..7=Sunday).
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"` // "HH:MM"
	EndTime   string    `db:"end_time" json:"end_time"`     // "HH:MM"
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DurationHours derives the slot length in hours from its bounds.
func (s *TimeSlot) DurationHours() float64 {
	return DurationHours(s.StartTime, s.EndTime)
}

// ParseClock parses a "HH:MM" value into minutes since midnight.
func ParseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", value, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// DurationHours computes the span between two "HH:MM" values in hours.
// Malformed or inverted bounds yield zero.
func DurationHours(start, end string) float64 {
	startMin, err := ParseClock(start)
	if err != nil {
		return 0
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return 0
	}
	if endMin <= startMin {
		return 0
	}
	return float64(endMin-startMin) / 60.0
}
