package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleStatus represents publication lifecycle phases for a timetable.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "DRAFT"
	ScheduleStatusReview    ScheduleStatus = "REVIEW"
	ScheduleStatusApproved  ScheduleStatus = "APPROVED"
	ScheduleStatusPublished ScheduleStatus = "PUBLISHED"
	ScheduleStatusArchived  ScheduleStatus = "ARCHIVED"
)

// CanTransitionTo encodes the allowed publication workflow.
func (s ScheduleStatus) CanTransitionTo(next ScheduleStatus) bool {
	allowed := map[ScheduleStatus][]ScheduleStatus{
		ScheduleStatusDraft:     {ScheduleStatusReview, ScheduleStatusArchived},
		ScheduleStatusReview:    {ScheduleStatusDraft, ScheduleStatusApproved},
		ScheduleStatusApproved:  {ScheduleStatusPublished, ScheduleStatusDraft},
		ScheduleStatusPublished: {ScheduleStatusArchived},
	}
	for _, candidate := range allowed[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Schedule is the container for a class timetable over an academic period.
type Schedule struct {
	ID             string         `db:"id" json:"id"`
	ClassID        string         `db:"class_id" json:"class_id"`
	AcademicPeriod string         `db:"academic_period" json:"academic_period"`
	Status         ScheduleStatus `db:"status" json:"status"`
	Meta           types.JSONText `db:"meta" json:"meta,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// SessionTemplate is an abstract weekly entry in a schedule. The recurrence
// expander turns it into dated occurrences. Unique per
// (schedule_id, time_slot_id, room_id).
type SessionTemplate struct {
	ID            string      `db:"id" json:"id"`
	ScheduleID    string      `db:"schedule_id" json:"schedule_id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	RoomID        string      `db:"room_id" json:"room_id"`
	InstructorID  string      `db:"instructor_id" json:"instructor_id"`
	TimeSlotID    string      `db:"time_slot_id" json:"time_slot_id"`
	SessionType   SessionType `db:"session_type" json:"session_type"`
	SpecificDate  *time.Time  `db:"specific_date" json:"specific_date,omitempty"`
	SpecificStart *string     `db:"specific_start" json:"specific_start,omitempty"`
	SpecificEnd   *string     `db:"specific_end" json:"specific_end,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
