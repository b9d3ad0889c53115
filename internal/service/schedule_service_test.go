package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

type scheduleStoreStub struct {
	mu    sync.Mutex
	items map[string]*models.Schedule
}

func newScheduleStoreStub(schedules ...models.Schedule) *scheduleStoreStub {
	store := &scheduleStoreStub{items: make(map[string]*models.Schedule)}
	for i := range schedules {
		copied := schedules[i]
		store.items[copied.ID] = &copied
	}
	return store
}

func (s *scheduleStoreStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schedule, ok := s.items[id]; ok {
		copied := *schedule
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) List(ctx context.Context, classID string) ([]models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Schedule
	for _, schedule := range s.items {
		if classID == "" || schedule.ClassID == classID {
			result = append(result, *schedule)
		}
	}
	return result, nil
}

func (s *scheduleStoreStub) Create(ctx context.Context, schedule *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *schedule
	s.items[schedule.ID] = &copied
	return nil
}

func (s *scheduleStoreStub) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	schedule.Status = status
	return nil
}

func (s *scheduleStoreStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func newScheduleFixture(schedules ...models.Schedule) (*ScheduleService, *scheduleStoreStub, *invalidatorSpy) {
	store := newScheduleStoreStub(schedules...)
	reports := &invalidatorSpy{}
	svc := NewScheduleService(store, classReaderStub{items: map[string]*models.Class{
		"class-1": {ID: "class-1", Code: "L2-INFO", StudentCount: 40},
	}}, reports, nil)
	return svc, store, reports
}

func TestCreateScheduleOpensDraft(t *testing.T) {
	svc, store, _ := newScheduleFixture()

	schedule, err := svc.Create(context.Background(), "class-1", "2025-S1")
	require.NoError(t, err)

	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, models.ScheduleStatusDraft, schedule.Status)
	assert.Equal(t, "2025-S1", schedule.AcademicPeriod)

	stored, err := store.FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusDraft, stored.Status)
}

func TestCreateScheduleRequiresKnownClass(t *testing.T) {
	svc, _, _ := newScheduleFixture()

	_, err := svc.Create(context.Background(), "class-ghost", "2025-S1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), "", "2025-S1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleWorkflowTransitions(t *testing.T) {
	draft := models.Schedule{ID: "sched-1", ClassID: "class-1", Status: models.ScheduleStatusDraft}
	svc, _, _ := newScheduleFixture(draft)

	reviewed, err := svc.Transition(context.Background(), "sched-1", dto.ScheduleStatusRequest{Status: "REVIEW"})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusReview, reviewed.Status)

	approved, err := svc.Transition(context.Background(), "sched-1", dto.ScheduleStatusRequest{Status: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusApproved, approved.Status)

	published, err := svc.Transition(context.Background(), "sched-1", dto.ScheduleStatusRequest{Status: "PUBLISHED"})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPublished, published.Status)
}

func TestScheduleWorkflowRejectsJumps(t *testing.T) {
	draft := models.Schedule{ID: "sched-1", ClassID: "class-1", Status: models.ScheduleStatusDraft}
	svc, _, _ := newScheduleFixture(draft)

	_, err := svc.Transition(context.Background(), "sched-1", dto.ScheduleStatusRequest{Status: "PUBLISHED"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "DRAFT")
}

func TestArchivedScheduleIsTerminal(t *testing.T) {
	archived := models.Schedule{ID: "sched-1", ClassID: "class-1", Status: models.ScheduleStatusArchived}
	svc, _, _ := newScheduleFixture(archived)

	_, err := svc.Transition(context.Background(), "sched-1", dto.ScheduleStatusRequest{Status: "DRAFT"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestDeleteScheduleDraftOnly(t *testing.T) {
	draft := models.Schedule{ID: "sched-draft", ClassID: "class-1", Status: models.ScheduleStatusDraft}
	published := models.Schedule{ID: "sched-live", ClassID: "class-1", Status: models.ScheduleStatusPublished}
	svc, store, reports := newScheduleFixture(draft, published)

	require.NoError(t, svc.Delete(context.Background(), "sched-draft"))
	_, err := store.FindByID(context.Background(), "sched-draft")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, []string{"sched-draft"}, reports.scheduleIDs)

	err = svc.Delete(context.Background(), "sched-live")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestListSchedulesFiltersByClass(t *testing.T) {
	svc, _, _ := newScheduleFixture(
		models.Schedule{ID: "sched-1", ClassID: "class-1", Status: models.ScheduleStatusDraft},
		models.Schedule{ID: "sched-2", ClassID: "class-2", Status: models.ScheduleStatusDraft},
	)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.List(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sched-1", filtered[0].ID)
}
