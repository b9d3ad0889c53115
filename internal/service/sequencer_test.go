package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
)

var testDelays = config.SequencingDelays{CMToTD: 1, CMToTP: 2, TDToTP: 1, CMToTPE: 3}

func day(offset int) time.Time {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // a Monday
	return base.AddDate(0, 0, offset)
}

func TestTimeScorePreferences(t *testing.T) {
	cases := []struct {
		sessionType models.SessionType
		start       string
		want        int
	}{
		{models.SessionTypeCM, "08:00", scorePreferred},
		{models.SessionTypeCM, "14:00", scoreAvoid},
		{models.SessionTypeCM, "11:30", scoreNeutral},
		{models.SessionTypeTD, "10:15", scorePreferred},
		{models.SessionTypeTD, "08:00", scoreAcceptable},
		{models.SessionTypeTP, "08:00", scoreAvoid},
		{models.SessionTypeTP, "16:00", scorePreferred},
		{models.SessionTypeTPE, "10:15", scoreAcceptable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, timeScore(tc.sessionType, tc.start), "%s at %s", tc.sessionType, tc.start)
	}
}

func TestDayScorePenalisesFridayLecturesAndWeekends(t *testing.T) {
	assert.Equal(t, scorePreferred, dayScore(models.SessionTypeCM, 1))
	assert.Equal(t, scoreAcceptable, dayScore(models.SessionTypeCM, 3))
	assert.Equal(t, dayScorePenalised, dayScore(models.SessionTypeCM, 5))
	assert.Equal(t, dayScorePenalised, dayScore(models.SessionTypeTD, 6))
	assert.Equal(t, dayScorePenalised, dayScore(models.SessionTypeTP, 7))
}

func TestNextSessionTypeOpeningCascade(t *testing.T) {
	required := map[models.SessionType]float64{
		models.SessionTypeCM: 4,
		models.SessionTypeTD: 4,
		models.SessionTypeTP: 4,
	}
	history := newCourseHistory()

	assert.Equal(t, models.SessionTypeCM, nextSessionType(history, required))

	history.add(day(0), models.SessionTypeCM, 2)
	assert.Equal(t, models.SessionTypeTD, nextSessionType(history, required))

	history.add(day(1), models.SessionTypeTD, 2)
	assert.Equal(t, models.SessionTypeTP, nextSessionType(history, required))
}

func TestNextSessionTypeFollowsRatioDeficit(t *testing.T) {
	required := map[models.SessionType]float64{
		models.SessionTypeCM: 8,
		models.SessionTypeTD: 8,
		models.SessionTypeTP: 8,
	}
	history := newCourseHistory()
	history.add(day(0), models.SessionTypeCM, 2)
	history.add(day(1), models.SessionTypeTD, 2)
	history.add(day(2), models.SessionTypeTP, 2)
	history.add(day(3), models.SessionTypeCM, 2)

	// CM holds half the sessions against a 0.2 target; TD and TP (0.3 targets)
	// are the furthest below ratio.
	next := nextSessionType(history, required)
	assert.Contains(t, []models.SessionType{models.SessionTypeTD, models.SessionTypeTP}, next)
}

func TestNextSessionTypeSkipsUnneededTypes(t *testing.T) {
	required := map[models.SessionType]float64{models.SessionTypeCM: 4}
	history := newCourseHistory()
	history.add(day(0), models.SessionTypeCM, 2)

	assert.Equal(t, models.SessionTypeCM, nextSessionType(history, required))
}

func TestIsValidSequenceEnforcesMinimumDelays(t *testing.T) {
	history := newCourseHistory()

	valid, reason := isValidSequence(history, day(0), models.SessionTypeTD, testDelays)
	assert.False(t, valid)
	assert.Contains(t, reason, "prior CM")

	history.add(day(0), models.SessionTypeCM, 2)

	valid, _ = isValidSequence(history, day(0), models.SessionTypeTD, testDelays)
	assert.False(t, valid, "TD on the lecture day violates the one-day delay")
	valid, _ = isValidSequence(history, day(1), models.SessionTypeTD, testDelays)
	assert.True(t, valid)

	valid, _ = isValidSequence(history, day(1), models.SessionTypeTP, testDelays)
	assert.False(t, valid, "TP needs two days after the first CM")
	valid, _ = isValidSequence(history, day(2), models.SessionTypeTP, testDelays)
	assert.True(t, valid)

	history.add(day(2), models.SessionTypeTD, 2)
	valid, _ = isValidSequence(history, day(2), models.SessionTypeTP, testDelays)
	assert.False(t, valid, "TP needs a day after the first TD")
	valid, _ = isValidSequence(history, day(3), models.SessionTypeTP, testDelays)
	assert.True(t, valid)

	valid, _ = isValidSequence(history, day(2), models.SessionTypeTPE, testDelays)
	assert.False(t, valid)
	valid, _ = isValidSequence(history, day(3), models.SessionTypeTPE, testDelays)
	assert.True(t, valid)
}

func TestIsValidSequenceAlwaysAcceptsLectures(t *testing.T) {
	history := newCourseHistory()
	valid, _ := isValidSequence(history, day(0), models.SessionTypeCM, testDelays)
	assert.True(t, valid)
}

func TestDelayScoreWindowAndDecay(t *testing.T) {
	history := newCourseHistory()
	history.add(day(0), models.SessionTypeCM, 2)

	// Optimal window spans [min, min+3] days after the anchor.
	assert.Equal(t, delayScoreOptimal, delayScore(history, day(1), models.SessionTypeTD, testDelays))
	assert.Equal(t, delayScoreOptimal, delayScore(history, day(4), models.SessionTypeTD, testDelays))

	// Decay of 10 per day outside the window, floored at 30.
	assert.Equal(t, delayScoreOptimal-delayDecayPerDay, delayScore(history, day(5), models.SessionTypeTD, testDelays))
	assert.Equal(t, delayScoreFloor, delayScore(history, day(20), models.SessionTypeTD, testDelays))
}

func TestDelayScoreWithoutDependencyIsNeutral(t *testing.T) {
	history := newCourseHistory()
	assert.Equal(t, delayScoreNeutral, delayScore(history, day(0), models.SessionTypeTD, testDelays))
	assert.Equal(t, delayScoreNeutral, delayScore(history, day(0), models.SessionTypeCM, testDelays))
}

func TestDelayScorePrefersTutorialAnchorForLabs(t *testing.T) {
	history := newCourseHistory()
	history.add(day(0), models.SessionTypeCM, 2)
	history.add(day(10), models.SessionTypeTD, 2)

	// With a TD placed, the lab anchors on it rather than on the lecture.
	assert.Equal(t, delayScoreOptimal, delayScore(history, day(11), models.SessionTypeTP, testDelays))
}

func TestCourseHistoryAccumulators(t *testing.T) {
	history := newCourseHistory()
	history.add(day(3), models.SessionTypeCM, 2)
	history.add(day(1), models.SessionTypeCM, 1.5)
	history.add(day(2), models.SessionTypeTD, 2)

	assert.Equal(t, 2, history.count(models.SessionTypeCM))
	assert.Equal(t, 3, history.total())
	assert.InDelta(t, 3.5, history.hoursOf(models.SessionTypeCM), 0.001)

	first, ok := history.firstDate(models.SessionTypeCM)
	assert.True(t, ok)
	assert.Equal(t, day(1), first, "first date tracks the earliest addition, not insertion order")
}
