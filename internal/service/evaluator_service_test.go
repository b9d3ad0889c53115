package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

func defaultEvaluationConfig() config.EvaluationConfig {
	return config.EvaluationConfig{
		WeightPedagogical:            100,
		WeightInstructorSatisfaction: 50,
		WeightRoomUtilisation:        30,
		WeightStudentLoadBalance:     40,
		WeightInstructorLoadBalance:  45,
		CacheTTL:                     10 * time.Minute,
	}
}

func newEvaluatorFixture(courses []models.Course, occurrences []models.Occurrence) *EvaluatorService {
	return NewEvaluatorService(
		scheduleReaderStub{items: map[string]*models.Schedule{
			"sched-1": {ID: "sched-1", ClassID: "class-1", Status: models.ScheduleStatusPublished},
		}},
		classReaderStub{items: map[string]*models.Class{
			"class-1": {ID: "class-1", StudentCount: 40},
		}},
		courseListerStub{items: courses},
		roomListerStub{items: stubRooms()},
		instructorListerStub{items: stubInstructors()},
		&occurrenceStoreStub{items: occurrences},
		nil,
		nil,
		defaultEngineConfig(),
		defaultEvaluationConfig(),
	)
}

func TestEvaluateFeasibleSchedule(t *testing.T) {
	courses := []models.Course{stubCourse("MATH101", "instructor-1", `{"CM": 4, "TD": 4}`, 8)}
	occurrences := []models.Occurrence{
		auditOcc("course-math", "room-b", "instructor-1", "2025-01-06", "08:00", "10:00"),
		auditOcc("course-math", "room-b", "instructor-1", "2025-01-13", "08:00", "10:00"),
		tutorialOcc("course-math", "room-b", "instructor-1", "2025-01-07", "10:15", "12:15"),
		tutorialOcc("course-math", "room-b", "instructor-1", "2025-01-14", "10:15", "12:15"),
	}

	report, err := newEvaluatorFixture(courses, occurrences).Evaluate(context.Background(), "sched-1")
	require.NoError(t, err)

	assert.True(t, report.Feasible)
	assert.Equal(t, 0, report.HardViolations.Total())
	assert.Equal(t, 4, report.OccurrenceCount)
	assert.Greater(t, report.GlobalScore, 0.0)
	assert.LessOrEqual(t, report.GlobalScore, 1000.0)
	assert.NotEqual(t, "F", report.Grade)
	assert.Greater(t, report.SoftScores.PedagogicalQuality, 0.0)
}

func tutorialOcc(courseID, roomID, instructorID, date, start, end string) models.Occurrence {
	occ := auditOcc(courseID, roomID, instructorID, date, start, end)
	occ.SessionType = models.SessionTypeTD
	return occ
}

func TestEvaluateDoubleBookingIsInfeasible(t *testing.T) {
	courses := []models.Course{
		stubCourse("MATH101", "instructor-1", `{"CM": 2}`, 2),
		stubCourse("PHYS101", "instructor-2", `{"CM": 2}`, 2),
	}
	occurrences := []models.Occurrence{
		auditOcc("course-math", "room-a", "instructor-1", "2025-01-06", "08:00", "10:00"),
		auditOcc("course-phys", "room-a", "instructor-2", "2025-01-06", "08:00", "10:00"),
	}

	report, err := newEvaluatorFixture(courses, occurrences).Evaluate(context.Background(), "sched-1")
	require.NoError(t, err)

	assert.False(t, report.Feasible)
	assert.Equal(t, "F", report.Grade)
	assert.Equal(t, 0.0, report.GlobalScore)
	assert.Equal(t, 1, report.HardViolations.RoomConflicts)
	assert.Equal(t, 50, report.RiskScore)
}

func TestEvaluateMissingHoursAreHardViolations(t *testing.T) {
	courses := []models.Course{stubCourse("MATH101", "instructor-1", `{"CM": 4, "TD": 4}`, 8)}

	report, err := newEvaluatorFixture(courses, nil).Evaluate(context.Background(), "sched-1")
	require.NoError(t, err)

	assert.False(t, report.Feasible)
	assert.Equal(t, 2, report.HardViolations.MissingCourseHours, "one violation per unmet session type")
	assert.Equal(t, "F", report.Grade)
}

func TestEvaluateCancelledSessionsDoNotCount(t *testing.T) {
	courses := []models.Course{stubCourse("MATH101", "instructor-1", `{"CM": 2}`, 2)}
	cancelled := auditOcc("course-math", "room-b", "instructor-1", "2025-01-06", "08:00", "10:00")
	cancelled.Status = models.OccurrenceStatusCancelled

	report, err := newEvaluatorFixture(courses, []models.Occurrence{cancelled}).Evaluate(context.Background(), "sched-1")
	require.NoError(t, err)

	assert.False(t, report.Feasible, "cancelled hours no longer cover the requirement")
	assert.Equal(t, 1, report.HardViolations.MissingCourseHours)
	assert.Equal(t, 0, report.OccurrenceCount)
}

func TestEvaluateUnknownScheduleFails(t *testing.T) {
	_, err := newEvaluatorFixture(nil, nil).Evaluate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBandScore(t *testing.T) {
	assert.Equal(t, 100.0, bandScore(5, 4, 6, 15))
	assert.Equal(t, 100.0, bandScore(4, 4, 6, 15))
	assert.Equal(t, 100.0, bandScore(6, 4, 6, 15))
	assert.Equal(t, 70.0, bandScore(2, 4, 6, 15))
	assert.Equal(t, 70.0, bandScore(8, 4, 6, 15))
	assert.Equal(t, 0.0, bandScore(20, 4, 6, 15))
}

func TestGradeThresholds(t *testing.T) {
	assert.Equal(t, "A", gradeFor(900))
	assert.Equal(t, "B", gradeFor(800))
	assert.Equal(t, "B", gradeFor(700))
	assert.Equal(t, "C", gradeFor(500))
	assert.Equal(t, "D", gradeFor(300))
	assert.Equal(t, "F", gradeFor(200))
	assert.Equal(t, "F", gradeFor(0))
}

func TestGlobalScoreIsWeightedMeanTimesTen(t *testing.T) {
	svc := newEvaluatorFixture(nil, nil)

	perfect := svc.globalScore(softScoresAll(100))
	assert.Equal(t, 1000.0, perfect)

	half := svc.globalScore(softScoresAll(50))
	assert.Equal(t, 500.0, half)
}

func TestGlobalScoreMixedComponents(t *testing.T) {
	svc := newEvaluatorFixture(nil, nil)

	// (75*100 + 80*50 + 70*30 + 60*40 + 75*45) / 265 * 10 = 731.13.
	score := svc.globalScore(dto.SoftScores{
		PedagogicalQuality:     75,
		InstructorSatisfaction: 80,
		RoomUtilisation:        70,
		StudentLoadBalance:     60,
		InstructorLoadBalance:  75,
	})
	assert.Equal(t, 731.13, score)
	assert.Equal(t, "B", gradeFor(score))
}

func softScoresAll(value float64) dto.SoftScores {
	return dto.SoftScores{
		PedagogicalQuality:     value,
		InstructorSatisfaction: value,
		RoomUtilisation:        value,
		StudentLoadBalance:     value,
		InstructorLoadBalance:  value,
	}
}

func TestRoomUtilisationPeaksAtTargetFill(t *testing.T) {
	svc := newEvaluatorFixture(nil, nil)
	lookup := auditLookup()

	// 40 students in a 50-seat room hits 0.8 fill against the 0.7 target.
	occ := auditOcc("course-math", "room-b", "instructor-1", "2025-01-06", "08:00", "10:00")
	score := svc.roomUtilisation([]models.Occurrence{occ}, lookup)
	assert.InDelta(t, 100-(0.1/0.7)*100, score, 0.01)

	// An exact-fill room scores 100.
	lookup.Rooms["room-exact"] = &models.Room{ID: "room-exact", Code: "E1", Capacity: 57, Active: true}
	exact := auditOcc("course-math", "room-exact", "instructor-1", "2025-01-06", "08:00", "10:00")
	assert.InDelta(t, 99.0, svc.roomUtilisation([]models.Occurrence{exact}, lookup), 1.5)
}

func TestInstructorSatisfactionPenalisesGaps(t *testing.T) {
	svc := newEvaluatorFixture(nil, nil)
	lookup := auditLookup()

	backToBack := []models.Occurrence{
		auditOcc("course-math", "room-a", "instructor-1", "2025-01-06", "08:00", "10:00"),
		auditOcc("course-phys", "room-b", "instructor-1", "2025-01-06", "10:15", "12:15"),
	}
	assert.Equal(t, 100.0, svc.instructorSatisfaction(backToBack, lookup))

	gapped := []models.Occurrence{
		auditOcc("course-math", "room-a", "instructor-1", "2025-01-06", "08:00", "10:00"),
		auditOcc("course-phys", "room-b", "instructor-1", "2025-01-06", "16:00", "18:00"),
	}
	assert.Equal(t, 100-instructorGapPenalty, svc.instructorSatisfaction(gapped, lookup))
}

func TestStudentLoadBalanceBand(t *testing.T) {
	svc := newEvaluatorFixture(nil, nil)

	// Two 2h sessions per day sit inside the 4-6h band.
	balanced := []models.Occurrence{
		auditOcc("course-math", "room-a", "instructor-1", "2025-01-06", "08:00", "10:00"),
		auditOcc("course-phys", "room-b", "instructor-2", "2025-01-06", "10:15", "12:15"),
	}
	assert.Equal(t, 100.0, svc.studentLoadBalance(balanced))

	// A single 2h day is 2h under the band: 100 - 2*15.
	light := balanced[:1]
	assert.Equal(t, 70.0, svc.studentLoadBalance(light))
}
