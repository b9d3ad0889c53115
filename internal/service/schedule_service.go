package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

type scheduleStore interface {
	scheduleReader
	List(ctx context.Context, classID string) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error
	Delete(ctx context.Context, id string) error
}

// ScheduleService manages timetable containers and their publication
// workflow. Generation and evaluation operate on schedules it owns.
type ScheduleService struct {
	schedules scheduleStore
	classes   classReader
	reports   reportInvalidator
	logger    *zap.Logger
}

func NewScheduleService(schedules scheduleStore, classes classReader, reports reportInvalidator, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{schedules: schedules, classes: classes, reports: reports, logger: logger}
}

// Create opens a new draft schedule for a class and academic period.
func (s *ScheduleService) Create(ctx context.Context, classID, academicPeriod string) (*models.Schedule, error) {
	if classID == "" || academicPeriod == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId and academicPeriod are required")
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	schedule := &models.Schedule{
		ID:             uuid.NewString(),
		ClassID:        classID,
		AcademicPeriod: academicPeriod,
		Status:         models.ScheduleStatusDraft,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.logger.Info("schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("class_id", classID),
		zap.String("academic_period", academicPeriod),
	)
	return schedule, nil
}

// Get returns one schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// List returns schedules, optionally filtered by class.
func (s *ScheduleService) List(ctx context.Context, classID string) ([]models.Schedule, error) {
	schedules, err := s.schedules.List(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// Transition moves a schedule through the publication workflow, rejecting
// jumps the workflow does not allow.
func (s *ScheduleService) Transition(ctx context.Context, id string, req dto.ScheduleStatusRequest) (*models.Schedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := models.ScheduleStatus(req.Status)
	if !schedule.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot transition schedule from %s to %s", schedule.Status, next))
	}
	if err := s.schedules.UpdateStatus(ctx, id, next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
	}
	schedule.Status = next

	s.logger.Info("schedule status changed",
		zap.String("schedule_id", id),
		zap.String("status", string(next)),
	)
	return schedule, nil
}

// Delete removes a schedule. Only drafts can be deleted; anything further
// along the workflow must be archived instead.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if schedule.Status != models.ScheduleStatusDraft {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "only draft schedules can be deleted")
	}
	if err := s.schedules.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	if s.reports != nil {
		s.reports.Invalidate(ctx, id)
	}
	s.logger.Info("schedule deleted", zap.String("schedule_id", id))
	return nil
}
