package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Course represents a teaching unit that must be placed on the timetable.
type Course struct {
	ID                 string         `db:"id" json:"id"`
	Code               string         `db:"code" json:"code"`
	Name               string         `db:"name" json:"name"`
	ClassID            string         `db:"class_id" json:"class_id"`
	InstructorID       string         `db:"instructor_id" json:"instructor_id"`
	TotalHours         float64        `db:"total_hours" json:"total_hours"`
	WeeklyHours        float64        `db:"weekly_hours" json:"weekly_hours"`
	MinSessionsPerWeek int            `db:"min_sessions_per_week" json:"min_sessions_per_week"`
	MaxSessionsPerWeek int            `db:"max_sessions_per_week" json:"max_sessions_per_week"`
	MinRoomCapacity    int            `db:"min_room_capacity" json:"min_room_capacity"`
	RequiresProjector  bool           `db:"requires_projector" json:"requires_projector"`
	RequiresComputer   bool           `db:"requires_computer" json:"requires_computer"`
	RequiresLaboratory bool           `db:"requires_laboratory" json:"requires_laboratory"`
	DifficultyScore    *float64       `db:"difficulty_score" json:"difficulty_score,omitempty"`
	Priority           int            `db:"priority" json:"priority"` // 1 = highest, 5 = lowest
	HoursByType        types.JSONText `db:"hours_by_type" json:"hours_by_type"`
	ExcludedTimes      types.JSONText `db:"excluded_times" json:"excluded_times,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// SessionTypeHours decodes the per-type hour requirements.
func (c *Course) SessionTypeHours() (map[SessionType]float64, error) {
	if len(c.HoursByType) == 0 {
		return map[SessionType]float64{}, nil
	}
	var raw map[SessionType]float64
	if err := json.Unmarshal(c.HoursByType, &raw); err != nil {
		return nil, fmt.Errorf("decode course %s hour requirements: %w", c.Code, err)
	}
	for sessionType := range raw {
		if !sessionType.Valid() {
			return nil, fmt.Errorf("course %s references unknown session type %q", c.Code, sessionType)
		}
	}
	return raw, nil
}

// ExcludedTimeWindow is an optional per-course blocked window.
type ExcludedTimeWindow struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ExcludedWindows decodes the optional excluded-times payload, best effort.
func (c *Course) ExcludedWindows() []ExcludedTimeWindow {
	if len(c.ExcludedTimes) == 0 {
		return nil
	}
	var windows []ExcludedTimeWindow
	_ = json.Unmarshal(c.ExcludedTimes, &windows)
	return windows
}
