package models

import "time"

// OccurrenceStatus tracks the lifecycle of a dated session instance.
type OccurrenceStatus string

const (
	OccurrenceStatusScheduled   OccurrenceStatus = "SCHEDULED"
	OccurrenceStatusCancelled   OccurrenceStatus = "CANCELLED"
	OccurrenceStatusCompleted   OccurrenceStatus = "COMPLETED"
	OccurrenceStatusModified    OccurrenceStatus = "MODIFIED"
	OccurrenceStatusRescheduled OccurrenceStatus = "RESCHEDULED"
)

// Occurrence is a materialised dated instance of a session template.
type Occurrence struct {
	ID                 string           `db:"id" json:"id"`
	TemplateID         string           `db:"template_id" json:"template_id"`
	ScheduleID         string           `db:"schedule_id" json:"schedule_id"`
	CourseID           string           `db:"course_id" json:"course_id"`
	SessionType        SessionType      `db:"session_type" json:"session_type"`
	Date               time.Time        `db:"date" json:"date"`
	StartTime          string           `db:"start_time" json:"start_time"` // "HH:MM"
	EndTime            string           `db:"end_time" json:"end_time"`     // "HH:MM"
	RoomID             string           `db:"room_id" json:"room_id"`
	InstructorID       string           `db:"instructor_id" json:"instructor_id"`
	Status             OccurrenceStatus `db:"status" json:"status"`
	RoomModified       bool             `db:"room_modified" json:"room_modified"`
	InstructorModified bool             `db:"instructor_modified" json:"instructor_modified"`
	TimeModified       bool             `db:"time_modified" json:"time_modified"`
	Cancelled          bool             `db:"cancelled" json:"cancelled"`
	CancellationReason *string          `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RescheduledFrom    *string          `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	Notes              *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// DurationHours derives the occurrence length from its time bounds.
func (o *Occurrence) DurationHours() float64 {
	return DurationHours(o.StartTime, o.EndTime)
}

// Active reports whether the occurrence occupies resources. Cancelled and
// rescheduled instances release their room and instructor.
func (o *Occurrence) Active() bool {
	switch o.Status {
	case OccurrenceStatusCancelled, OccurrenceStatusRescheduled:
		return false
	}
	return true
}

// HumanEdited reports whether the occurrence carries manual modifications
// that partial regeneration must preserve.
func (o *Occurrence) HumanEdited() bool {
	return o.RoomModified || o.InstructorModified || o.TimeModified || o.Cancelled
}
