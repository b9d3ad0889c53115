package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// InstructorUnavailability describes a blocked teaching window. Either the
// recurring form (day_of_week + time_range) or the dated form (start_date +
// end_date) is populated.
type InstructorUnavailability struct {
	DayOfWeek string     `json:"day_of_week,omitempty"`
	TimeRange string     `json:"time_range,omitempty"` // "HH:MM-HH:MM"
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Instructor represents a member of the teaching staff.
type Instructor struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Department      string         `db:"department" json:"department"`
	MaxHoursPerWeek float64        `db:"max_hours_per_week" json:"max_hours_per_week"`
	PreferredDays   types.JSONText `db:"preferred_days" json:"preferred_days,omitempty"`
	Unavailability  types.JSONText `db:"unavailability" json:"unavailability,omitempty"`
	Active          bool           `db:"active" json:"active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// PreferredDaySet decodes the preferred weekday list (1=Monday..7=Sunday).
func (i *Instructor) PreferredDaySet() map[int]struct{} {
	if len(i.PreferredDays) == 0 {
		return nil
	}
	var days []int
	_ = json.Unmarshal(i.PreferredDays, &days)
	set := make(map[int]struct{}, len(days))
	for _, day := range days {
		if day >= 1 && day <= 7 {
			set[day] = struct{}{}
		}
	}
	return set
}

// UnavailableWindows decodes the unavailability payload.
func (i *Instructor) UnavailableWindows() ([]InstructorUnavailability, error) {
	if len(i.Unavailability) == 0 {
		return nil, nil
	}
	var windows []InstructorUnavailability
	if err := json.Unmarshal(i.Unavailability, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}
