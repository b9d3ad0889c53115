package dto

import (
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

// SpecialWeek marks a date range with altered teaching rules.
type SpecialWeek struct {
	StartDate      string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"endDate" validate:"required,datetime=2006-01-02"`
	SuspendRegular bool   `json:"suspendRegular"`
	Label          string `json:"label"`
}

// GenerateScheduleRequest instructs the engine to build occurrences for a schedule.
type GenerateScheduleRequest struct {
	ScheduleID                   string        `json:"scheduleId" validate:"required"`
	StartDate                    string        `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate                      string        `json:"endDate" validate:"required,datetime=2006-01-02"`
	Recurrence                   string        `json:"recurrence" validate:"omitempty,oneof=weekly biweekly monthly"`
	Flexibility                  string        `json:"flexibility" validate:"omitempty,oneof=rigid balanced flexible"`
	AllowConflicts               bool          `json:"allowConflicts"`
	MaxSessionsPerDay            int           `json:"maxSessionsPerDay" validate:"omitempty,min=1,max=12"`
	RespectRoomPreferences       bool          `json:"respectRoomPreferences"`
	RespectInstructorPreferences bool          `json:"respectInstructorPreferences"`
	ExcludedDates                []string      `json:"excludedDates" validate:"omitempty,dive,datetime=2006-01-02"`
	SpecialWeeks                 []SpecialWeek `json:"specialWeeks" validate:"omitempty,dive"`
	PreviewMode                  bool          `json:"previewMode"`
	ForceRegenerate              bool          `json:"forceRegenerate"`
	PreserveModifications        bool          `json:"preserveModifications"`
	DateFrom                     *string       `json:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo                       *string       `json:"dateTo" validate:"omitempty,datetime=2006-01-02"`
}

// OccurrencePreview is a human-readable line of a preview run.
type OccurrencePreview struct {
	CourseCode  string `json:"courseCode"`
	SessionType string `json:"sessionType"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	RoomCode    string `json:"roomCode"`
	Instructor  string `json:"instructor"`
}

// GenerationResult reports the outcome of a generation run.
type GenerationResult struct {
	Success            bool                `json:"success"`
	Message            string              `json:"message"`
	OccurrencesCreated int                 `json:"occurrencesCreated"`
	ConflictsDetected  int                 `json:"conflictsDetected"`
	Conflicts          []models.Conflict   `json:"conflicts"`
	Preview            []OccurrencePreview `json:"preview,omitempty"`
	ElapsedSeconds     float64             `json:"elapsedSeconds"`
}

// GenerationJobStatus reports the state of an asynchronous generation run.
type GenerationJobStatus struct {
	JobID      string            `json:"jobId"`
	ScheduleID string            `json:"scheduleId"`
	State      string            `json:"state"` // queued | running | done | failed
	Result     *GenerationResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	EnqueuedAt string            `json:"enqueuedAt"`
	FinishedAt string            `json:"finishedAt,omitempty"`
}
