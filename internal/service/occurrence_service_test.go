package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

type invalidatorSpy struct {
	scheduleIDs []string
}

func (s *invalidatorSpy) Invalidate(ctx context.Context, scheduleID string) {
	s.scheduleIDs = append(s.scheduleIDs, scheduleID)
}

func newLifecycleFixture(existing ...models.Occurrence) (*OccurrenceService, *occurrenceStoreStub, *invalidatorSpy) {
	store := &occurrenceStoreStub{items: existing}
	reports := &invalidatorSpy{}
	return NewOccurrenceService(store, store, reports, nil, nil), store, reports
}

func strptr(v string) *string { return &v }

func TestCancelOccurrence(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, store, reports := newLifecycleFixture(original)

	cancelled, err := svc.Cancel(context.Background(), original.ID, dto.CancelOccurrenceRequest{Reason: "instructor illness"})
	require.NoError(t, err)

	assert.Equal(t, models.OccurrenceStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.Cancelled)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "instructor illness", *cancelled.CancellationReason)

	stored, err := store.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceStatusCancelled, stored.Status)
	assert.Equal(t, []string{"sched-1"}, reports.scheduleIDs)
}

func TestCancelIsNotIdempotent(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	original.Status = models.OccurrenceStatusCancelled
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Cancel(context.Background(), original.ID, dto.CancelOccurrenceRequest{Reason: "room flooded"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCancelRequiresReason(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Cancel(context.Background(), original.ID, dto.CancelOccurrenceRequest{Reason: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCancelUnknownOccurrence(t *testing.T) {
	svc, _, _ := newLifecycleFixture()
	_, err := svc.Cancel(context.Background(), "missing", dto.CancelOccurrenceRequest{Reason: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRescheduleChainsReplacement(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, store, reports := newLifecycleFixture(original)

	replacement, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:  "2025-01-09",
		NewStart: "10:15",
		NewEnd:   "12:15",
	})
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, replacement.ID)
	assert.Equal(t, models.OccurrenceStatusScheduled, replacement.Status)
	assert.True(t, replacement.TimeModified)
	require.NotNil(t, replacement.RescheduledFrom)
	assert.Equal(t, original.ID, *replacement.RescheduledFrom)
	assert.Equal(t, "2025-01-09", replacement.Date.Format(dateKeyLayout))

	retired, err := store.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceStatusRescheduled, retired.Status)
	assert.NotEmpty(t, reports.scheduleIDs)
}

func TestRescheduleWithRoomOverrideFlagsRoom(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, _, _ := newLifecycleFixture(original)

	replacement, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:   "2025-01-09",
		NewStart:  "10:15",
		NewEnd:    "12:15",
		NewRoomID: strptr("room-b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "room-b", replacement.RoomID)
	assert.True(t, replacement.RoomModified)
}

func TestRescheduleRejectsOccupiedSlot(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	neighbour := stubOccurrence("sched-other", "course-other", "2025-01-09", "10:15", "12:15")
	neighbour.ID = "occ-neighbour"
	svc, _, _ := newLifecycleFixture(original, neighbour)

	// The neighbour holds the same room at the target slot.
	_, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:  "2025-01-09",
		NewStart: "10:15",
		NewEnd:   "12:15",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRescheduleRejectsOccupiedInstructor(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	neighbour := stubOccurrence("sched-other", "course-other", "2025-01-09", "10:15", "12:15")
	neighbour.ID = "occ-neighbour"
	neighbour.RoomID = "room-b"
	svc, _, _ := newLifecycleFixture(original, neighbour)

	_, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:  "2025-01-09",
		NewStart: "10:15",
		NewEnd:   "12:15",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "instructor")
}

func TestRescheduleRejectsInactiveOriginal(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	original.Status = models.OccurrenceStatusRescheduled
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:  "2025-01-09",
		NewStart: "10:15",
		NewEnd:   "12:15",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRescheduleValidatesDuration(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Reschedule(context.Background(), original.ID, dto.RescheduleOccurrenceRequest{
		NewDate:  "2025-01-09",
		NewStart: "12:15",
		NewEnd:   "10:15",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestModifySetsModificationFlags(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, store, _ := newLifecycleFixture(original)

	modified, err := svc.Modify(context.Background(), original.ID, dto.ModifyOccurrenceRequest{
		RoomID: strptr("room-b"),
	})
	require.NoError(t, err)

	assert.Equal(t, "room-b", modified.RoomID)
	assert.True(t, modified.RoomModified)
	assert.False(t, modified.TimeModified)
	assert.Equal(t, models.OccurrenceStatusModified, modified.Status)

	stored, err := store.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, "room-b", stored.RoomID)
}

func TestModifyNotesOnlyKeepsStatus(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, _, _ := newLifecycleFixture(original)

	modified, err := svc.Modify(context.Background(), original.ID, dto.ModifyOccurrenceRequest{
		Notes: strptr("bring handouts"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceStatusScheduled, modified.Status)
	assert.False(t, modified.HumanEdited())
}

func TestModifyRejectsInvertedTimes(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Modify(context.Background(), original.ID, dto.ModifyOccurrenceRequest{
		StartTime: strptr("11:00"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestModifyRejectsConflictingRoom(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	neighbour := stubOccurrence("sched-other", "course-other", "2025-01-07", "08:00", "10:00")
	neighbour.ID = "occ-neighbour"
	neighbour.RoomID = "room-b"
	neighbour.InstructorID = "instructor-2"
	svc, _, _ := newLifecycleFixture(original, neighbour)

	_, err := svc.Modify(context.Background(), original.ID, dto.ModifyOccurrenceRequest{
		RoomID: strptr("room-b"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestModifyRejectsCancelledOccurrence(t *testing.T) {
	original := stubOccurrence("sched-1", "course-math", "2025-01-07", "08:00", "10:00")
	original.Status = models.OccurrenceStatusCancelled
	svc, _, _ := newLifecycleFixture(original)

	_, err := svc.Modify(context.Background(), original.ID, dto.ModifyOccurrenceRequest{Notes: strptr("n/a")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
