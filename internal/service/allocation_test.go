package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

func TestAllocationIndexSlotBookings(t *testing.T) {
	index := newAllocationIndex()
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	assert.True(t, index.RoomFree(date, "08:00", "room-a"))
	assert.True(t, index.InstructorFree(date, "08:00", "instructor-1"))

	index.MarkUsed(date, "08:00", "room-a", "instructor-1", 2)

	assert.False(t, index.RoomFree(date, "08:00", "room-a"))
	assert.False(t, index.InstructorFree(date, "08:00", "instructor-1"))

	// Other rooms, starts and dates stay free.
	assert.True(t, index.RoomFree(date, "08:00", "room-b"))
	assert.True(t, index.RoomFree(date, "10:15", "room-a"))
	assert.True(t, index.RoomFree(date.AddDate(0, 0, 1), "08:00", "room-a"))
	assert.True(t, index.InstructorFree(date, "08:00", "instructor-2"))
}

func TestAllocationIndexWeekHoursFollowISOWeeks(t *testing.T) {
	index := newAllocationIndex()
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	index.MarkUsed(monday, "08:00", "room-a", "instructor-1", 2)
	index.MarkUsed(monday.AddDate(0, 0, 4), "08:00", "room-a", "instructor-1", 3)

	assert.Equal(t, 5.0, index.InstructorWeekHours("instructor-1", monday))
	assert.Equal(t, 5.0, index.InstructorWeekHours("instructor-1", monday.AddDate(0, 0, 6)))
	assert.Equal(t, 0.0, index.InstructorWeekHours("instructor-1", monday.AddDate(0, 0, 7)))
	assert.Equal(t, 0.0, index.InstructorWeekHours("instructor-2", monday))
}

func TestAllocationIndexRoomUseCount(t *testing.T) {
	index := newAllocationIndex()
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, index.RoomUseCount("room-a"))
	index.MarkUsed(date, "08:00", "room-a", "instructor-1", 2)
	index.MarkUsed(date, "10:15", "room-a", "instructor-1", 2)
	assert.Equal(t, 2, index.RoomUseCount("room-a"))
}

func TestPreloadOccurrencesSkipsInactive(t *testing.T) {
	index := newAllocationIndex()

	active := stubOccurrence("sched-1", "course-math", "2025-01-06", "08:00", "10:00")
	cancelled := stubOccurrence("sched-1", "course-math", "2025-01-06", "10:15", "12:15")
	cancelled.Status = models.OccurrenceStatusCancelled

	index.PreloadOccurrences([]models.Occurrence{active, cancelled})

	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	assert.False(t, index.RoomFree(date, "08:00", "room-a"))
	assert.True(t, index.RoomFree(date, "10:15", "room-a"), "a cancelled session releases its slot")
	assert.Equal(t, 2.0, index.InstructorWeekHours("instructor-1", date))
}

func TestMemoryRunLocker(t *testing.T) {
	locker := newMemoryRunLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "sched-1")
	assert.NoError(t, err)
	assert.True(t, acquired)

	again, err := locker.Acquire(ctx, "sched-1")
	assert.NoError(t, err)
	assert.False(t, again, "a held lock cannot be re-acquired")

	other, err := locker.Acquire(ctx, "sched-2")
	assert.NoError(t, err)
	assert.True(t, other, "locks are per schedule")

	locker.Release(ctx, "sched-1")
	released, err := locker.Acquire(ctx, "sched-1")
	assert.NoError(t, err)
	assert.True(t, released)
}
