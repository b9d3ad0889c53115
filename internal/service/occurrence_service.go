package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

type occurrenceMutator interface {
	Create(ctx context.Context, occurrence *models.Occurrence) error
	Update(ctx context.Context, occurrence *models.Occurrence) error
}

type reportInvalidator interface {
	Invalidate(ctx context.Context, scheduleID string)
}

// OccurrenceService handles the manual lifecycle of dated sessions:
// cancellation, rescheduling and in-place modification. Every mutation
// invalidates the schedule's cached evaluation.
type OccurrenceService struct {
	occurrences occurrenceReader
	mutator     occurrenceMutator
	reports     reportInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOccurrenceService wires lifecycle dependencies. The invalidator may be
// nil when no evaluation cache is configured.
func NewOccurrenceService(
	occurrences occurrenceReader,
	mutator occurrenceMutator,
	reports reportInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *OccurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccurrenceService{
		occurrences: occurrences,
		mutator:     mutator,
		reports:     reports,
		validator:   validate,
		logger:      logger,
	}
}

func (s *OccurrenceService) load(ctx context.Context, id string) (*models.Occurrence, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "occurrence id is required")
	}
	occurrence, err := s.occurrences.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	return occurrence, nil
}

func (s *OccurrenceService) invalidate(ctx context.Context, scheduleID string) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, scheduleID)
	}
}

// Cancel marks a session as cancelled with an operator-supplied reason. The
// room and instructor are released; the record stays for audit.
func (s *OccurrenceService) Cancel(ctx context.Context, id string, req dto.CancelOccurrenceRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	occurrence, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if occurrence.Status == models.OccurrenceStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "occurrence is already cancelled")
	}
	if occurrence.Status == models.OccurrenceStatusRescheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "occurrence was rescheduled; cancel the replacement instead")
	}

	occurrence.Status = models.OccurrenceStatusCancelled
	occurrence.Cancelled = true
	occurrence.CancellationReason = &req.Reason
	if err := s.mutator.Update(ctx, occurrence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel occurrence")
	}

	s.invalidate(ctx, occurrence.ScheduleID)
	s.logger.Info("occurrence cancelled",
		zap.String("occurrence_id", occurrence.ID),
		zap.String("schedule_id", occurrence.ScheduleID),
		zap.String("reason", req.Reason),
	)
	return occurrence, nil
}

// Reschedule moves a session to a new date and time by creating a
// replacement occurrence chained to the original. The original keeps its
// history and releases its resources.
func (s *OccurrenceService) Reschedule(ctx context.Context, id string, req dto.RescheduleOccurrenceRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	newDate, err := time.Parse(dateKeyLayout, req.NewDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid newDate")
	}
	if models.DurationHours(req.NewStart, req.NewEnd) <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "newEnd must be after newStart")
	}

	original, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !original.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only active occurrences can be rescheduled")
	}

	replacement := *original
	replacement.ID = uuid.NewString()
	replacement.Date = newDate
	replacement.StartTime = req.NewStart
	replacement.EndTime = req.NewEnd
	replacement.Status = models.OccurrenceStatusScheduled
	replacement.TimeModified = true
	replacement.RescheduledFrom = &original.ID
	replacement.CancellationReason = nil
	replacement.Cancelled = false
	if req.NewRoomID != nil {
		replacement.RoomID = *req.NewRoomID
		replacement.RoomModified = true
	}
	if req.NewInstructorID != nil {
		replacement.InstructorID = *req.NewInstructorID
		replacement.InstructorModified = true
	}

	if err := s.checkSlotFree(ctx, &replacement, original.ID); err != nil {
		return nil, err
	}

	if err := s.mutator.Create(ctx, &replacement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement occurrence")
	}
	original.Status = models.OccurrenceStatusRescheduled
	if err := s.mutator.Update(ctx, original); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire original occurrence")
	}

	s.invalidate(ctx, original.ScheduleID)
	s.logger.Info("occurrence rescheduled",
		zap.String("occurrence_id", original.ID),
		zap.String("replacement_id", replacement.ID),
		zap.String("new_date", req.NewDate),
	)
	return &replacement, nil
}

// Modify patches a session in place and flags what changed so regeneration
// knows to preserve it.
func (s *OccurrenceService) Modify(ctx context.Context, id string, req dto.ModifyOccurrenceRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid modification payload")
	}
	occurrence, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !occurrence.Active() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only active occurrences can be modified")
	}

	changedResources := false
	if req.RoomID != nil && *req.RoomID != occurrence.RoomID {
		occurrence.RoomID = *req.RoomID
		occurrence.RoomModified = true
		changedResources = true
	}
	if req.InstructorID != nil && *req.InstructorID != occurrence.InstructorID {
		occurrence.InstructorID = *req.InstructorID
		occurrence.InstructorModified = true
		changedResources = true
	}
	if req.StartTime != nil {
		occurrence.StartTime = *req.StartTime
		occurrence.TimeModified = true
		changedResources = true
	}
	if req.EndTime != nil {
		occurrence.EndTime = *req.EndTime
		occurrence.TimeModified = true
	}
	if req.Notes != nil {
		occurrence.Notes = req.Notes
	}
	if occurrence.DurationHours() <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endTime must be after startTime")
	}

	if changedResources {
		if err := s.checkSlotFree(ctx, occurrence, occurrence.ID); err != nil {
			return nil, err
		}
	}
	if occurrence.HumanEdited() {
		occurrence.Status = models.OccurrenceStatusModified
	}

	if err := s.mutator.Update(ctx, occurrence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update occurrence")
	}

	s.invalidate(ctx, occurrence.ScheduleID)
	s.logger.Info("occurrence modified",
		zap.String("occurrence_id", occurrence.ID),
		zap.String("schedule_id", occurrence.ScheduleID),
	)
	return occurrence, nil
}

// checkSlotFree verifies the target slot against all committed occurrences
// around the new date, ignoring the occurrence being replaced.
func (s *OccurrenceService) checkSlotFree(ctx context.Context, candidate *models.Occurrence, ignoreID string) error {
	neighbours, err := s.occurrences.ListInWindow(ctx, candidate.Date.AddDate(0, 0, -1), candidate.Date.AddDate(0, 0, 1))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target slot")
	}

	index := newAllocationIndex()
	for i := range neighbours {
		if neighbours[i].ID == ignoreID {
			continue
		}
		index.PreloadOccurrences(neighbours[i : i+1])
	}

	if !index.RoomFree(candidate.Date, candidate.StartTime, candidate.RoomID) {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("room is already booked on %s at %s", candidate.Date.Format(dateKeyLayout), candidate.StartTime))
	}
	if !index.InstructorFree(candidate.Date, candidate.StartTime, candidate.InstructorID) {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("instructor is already booked on %s at %s", candidate.Date.Format(dateKeyLayout), candidate.StartTime))
	}
	return nil
}
