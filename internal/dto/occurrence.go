package dto

// CancelOccurrenceRequest cancels a dated session.
type CancelOccurrenceRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// RescheduleOccurrenceRequest moves a session to a new date and time. A new
// occurrence is created and chained to the original via rescheduled_from.
type RescheduleOccurrenceRequest struct {
	NewDate         string  `json:"newDate" validate:"required,datetime=2006-01-02"`
	NewStart        string  `json:"newStart" validate:"required,datetime=15:04"`
	NewEnd          string  `json:"newEnd" validate:"required,datetime=15:04"`
	NewRoomID       *string `json:"newRoomId"`
	NewInstructorID *string `json:"newInstructorId"`
}

// ModifyOccurrenceRequest patches an occurrence in place, setting the
// matching *_modified flags.
type ModifyOccurrenceRequest struct {
	RoomID       *string `json:"roomId"`
	InstructorID *string `json:"instructorId"`
	StartTime    *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime      *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Notes        *string `json:"notes"`
}

// ScheduleStatusRequest transitions a schedule through the publication workflow.
type ScheduleStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT REVIEW APPROVED PUBLISHED ARCHIVED"`
}
