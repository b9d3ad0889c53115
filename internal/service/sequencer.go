package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
)

// The sequencer encodes the pedagogical ordering rules: lectures open a
// course, tutorials and labs follow after minimum delays, and each session
// type carries time-of-day and day-of-week preferences. All functions are
// deterministic and side-effect free; score lookups are cached by argument
// tuple.

// Target session-type ratios CM:TD:TP:TPE.
var sessionTypeRatios = map[models.SessionType]float64{
	models.SessionTypeCM:  2,
	models.SessionTypeTD:  3,
	models.SessionTypeTP:  3,
	models.SessionTypeTPE: 2,
}

const ratioTotal = 10.0

const (
	scorePreferred  = 100
	scoreAcceptable = 60
	scoreNeutral    = 40
	scoreAvoid      = 10
)

// timePreferences maps each session type to its preferred, acceptable and
// avoided start times. Unlisted starts score neutral.
var timePreferences = map[models.SessionType]struct {
	preferred  map[string]struct{}
	acceptable map[string]struct{}
	avoid      map[string]struct{}
}{
	models.SessionTypeCM: {
		preferred: set("08:00", "10:15"),
		avoid:     set("14:00", "16:00"),
	},
	models.SessionTypeTD: {
		preferred:  set("10:15", "14:00"),
		acceptable: set("08:00", "16:00"),
	},
	models.SessionTypeTP: {
		preferred:  set("14:00", "16:00"),
		acceptable: set("10:15"),
		avoid:      set("08:00"),
	},
	models.SessionTypeTPE: {
		preferred:  set("14:00", "16:00"),
		acceptable: set("10:15"),
		avoid:      set("08:00"),
	},
}

// dayPreferences maps each session type to favoured (100) and secondary (60)
// weekdays, 1=Monday..7=Sunday. CM on Friday is explicitly penalised.
var dayPreferences = map[models.SessionType]struct {
	favoured  map[int]struct{}
	secondary map[int]struct{}
	penalised map[int]struct{}
}{
	models.SessionTypeCM: {
		favoured:  daySet(1, 2),
		secondary: daySet(3),
		penalised: daySet(5),
	},
	models.SessionTypeTD: {
		favoured:  daySet(2, 3),
		secondary: daySet(1, 4),
	},
	models.SessionTypeTP: {
		favoured:  daySet(3, 4),
		secondary: daySet(2, 5),
	},
	models.SessionTypeTPE: {
		favoured:  daySet(4, 5),
		secondary: daySet(3),
	},
}

const dayScorePenalised = 20

func set(values ...string) map[string]struct{} {
	result := make(map[string]struct{}, len(values))
	for _, v := range values {
		result[v] = struct{}{}
	}
	return result
}

func daySet(days ...int) map[int]struct{} {
	result := make(map[int]struct{}, len(days))
	for _, d := range days {
		result[d] = struct{}{}
	}
	return result
}

type timeScoreKey struct {
	SessionType models.SessionType
	Start       string
}

type dayScoreKey struct {
	SessionType models.SessionType
	Day         int
}

type scoreCache struct {
	mu   sync.RWMutex
	time map[timeScoreKey]int
	day  map[dayScoreKey]int
}

var sequencerCache = &scoreCache{
	time: make(map[timeScoreKey]int),
	day:  make(map[dayScoreKey]int),
}

// timeScore rates a start time for a session type on a 0-100 scale.
func timeScore(sessionType models.SessionType, start string) int {
	key := timeScoreKey{SessionType: sessionType, Start: start}
	sequencerCache.mu.RLock()
	if cached, ok := sequencerCache.time[key]; ok {
		sequencerCache.mu.RUnlock()
		return cached
	}
	sequencerCache.mu.RUnlock()

	score := scoreNeutral
	if prefs, ok := timePreferences[sessionType]; ok {
		switch {
		case contains(prefs.preferred, start):
			score = scorePreferred
		case contains(prefs.acceptable, start):
			score = scoreAcceptable
		case contains(prefs.avoid, start):
			score = scoreAvoid
		}
	}

	sequencerCache.mu.Lock()
	sequencerCache.time[key] = score
	sequencerCache.mu.Unlock()
	return score
}

// dayScore rates a weekday (1=Monday..7=Sunday) for a session type.
func dayScore(sessionType models.SessionType, weekday int) int {
	key := dayScoreKey{SessionType: sessionType, Day: weekday}
	sequencerCache.mu.RLock()
	if cached, ok := sequencerCache.day[key]; ok {
		sequencerCache.mu.RUnlock()
		return cached
	}
	sequencerCache.mu.RUnlock()

	score := scoreNeutral
	if prefs, ok := dayPreferences[sessionType]; ok {
		switch {
		case containsDay(prefs.favoured, weekday):
			score = scorePreferred
		case containsDay(prefs.secondary, weekday):
			score = scoreAcceptable
		case containsDay(prefs.penalised, weekday):
			score = dayScorePenalised
		}
	}
	if weekday >= 6 {
		score = dayScorePenalised
	}

	sequencerCache.mu.Lock()
	sequencerCache.day[key] = score
	sequencerCache.mu.Unlock()
	return score
}

func contains(m map[string]struct{}, key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

func containsDay(m map[int]struct{}, key int) bool {
	if m == nil {
		return false
	}
	_, ok := m[key]
	return ok
}

// placedSession summarises an already accepted session of a course.
type placedSession struct {
	Date        time.Time
	SessionType models.SessionType
	Hours       float64
}

// courseHistory accumulates the per-course placement state the sequencer
// depends on: counts and first dates per session type.
type courseHistory struct {
	sessions   []placedSession
	counts     map[models.SessionType]int
	firstDates map[models.SessionType]time.Time
	lastDates  map[models.SessionType]time.Time
}

func newCourseHistory() *courseHistory {
	return &courseHistory{
		counts:     make(map[models.SessionType]int),
		firstDates: make(map[models.SessionType]time.Time),
		lastDates:  make(map[models.SessionType]time.Time),
	}
}

func (h *courseHistory) add(date time.Time, sessionType models.SessionType, hours float64) {
	h.sessions = append(h.sessions, placedSession{Date: date, SessionType: sessionType, Hours: hours})
	h.counts[sessionType]++
	if first, ok := h.firstDates[sessionType]; !ok || date.Before(first) {
		h.firstDates[sessionType] = date
	}
	if last, ok := h.lastDates[sessionType]; !ok || date.After(last) {
		h.lastDates[sessionType] = date
	}
}

func (h *courseHistory) count(sessionType models.SessionType) int {
	return h.counts[sessionType]
}

func (h *courseHistory) total() int {
	return len(h.sessions)
}

func (h *courseHistory) firstDate(sessionType models.SessionType) (time.Time, bool) {
	date, ok := h.firstDates[sessionType]
	return date, ok
}

// hoursOf sums the placed hours for one session type.
func (h *courseHistory) hoursOf(sessionType models.SessionType) float64 {
	var total float64
	for _, session := range h.sessions {
		if session.SessionType == sessionType {
			total += session.Hours
		}
	}
	return total
}

// nextSessionType picks the session type to place next, following the target
// ratios. The opening cascade guarantees CM before TD before TP.
func nextSessionType(history *courseHistory, required map[models.SessionType]float64) models.SessionType {
	needs := func(sessionType models.SessionType) bool {
		if len(required) == 0 {
			return true
		}
		hours, ok := required[sessionType]
		return ok && hours > 0
	}

	if history.count(models.SessionTypeCM) == 0 && needs(models.SessionTypeCM) {
		return models.SessionTypeCM
	}
	if history.count(models.SessionTypeCM) >= 1 && history.count(models.SessionTypeTD) == 0 && needs(models.SessionTypeTD) {
		return models.SessionTypeTD
	}
	if history.count(models.SessionTypeTD) >= 1 && history.count(models.SessionTypeTP) == 0 && needs(models.SessionTypeTP) {
		return models.SessionTypeTP
	}

	// Pick the type whose current share deviates most below its target ratio.
	total := history.total()
	best := models.SessionTypeCM
	bestDeficit := -1.0
	for _, sessionType := range models.AllSessionTypes {
		if !needs(sessionType) {
			continue
		}
		target := sessionTypeRatios[sessionType] / ratioTotal
		share := 0.0
		if total > 0 {
			share = float64(history.count(sessionType)) / float64(total)
		}
		deficit := target - share
		if deficit > bestDeficit {
			bestDeficit = deficit
			best = sessionType
		}
	}
	return best
}

// isValidSequence enforces the minimum inter-type delays. Maximum gaps are
// deliberately not checked here; scoring handles those.
func isValidSequence(history *courseHistory, proposedDate time.Time, proposedType models.SessionType, delays config.SequencingDelays) (bool, string) {
	daysSince := func(from time.Time) int {
		return int(proposedDate.Sub(from).Hours() / 24)
	}

	switch proposedType {
	case models.SessionTypeCM:
		return true, ""
	case models.SessionTypeTD:
		firstCM, ok := history.firstDate(models.SessionTypeCM)
		if !ok {
			return false, "a TD session requires a prior CM"
		}
		if gap := daysSince(firstCM); gap < delays.CMToTD {
			return false, fmt.Sprintf("TD must start at least %d day(s) after the first CM (gap %d)", delays.CMToTD, gap)
		}
	case models.SessionTypeTP:
		firstCM, ok := history.firstDate(models.SessionTypeCM)
		if !ok {
			return false, "a TP session requires a prior CM"
		}
		if gap := daysSince(firstCM); gap < delays.CMToTP {
			return false, fmt.Sprintf("TP must start at least %d day(s) after the first CM (gap %d)", delays.CMToTP, gap)
		}
		if firstTD, ok := history.firstDate(models.SessionTypeTD); ok {
			if gap := daysSince(firstTD); gap < delays.TDToTP {
				return false, fmt.Sprintf("TP must start at least %d day(s) after the first TD (gap %d)", delays.TDToTP, gap)
			}
		}
	case models.SessionTypeTPE:
		firstCM, ok := history.firstDate(models.SessionTypeCM)
		if !ok {
			return false, "a TPE session requires a prior CM"
		}
		if gap := daysSince(firstCM); gap < delays.CMToTPE {
			return false, fmt.Sprintf("TPE must start at least %d day(s) after the first CM (gap %d)", delays.CMToTPE, gap)
		}
	default:
		return false, fmt.Sprintf("unknown session type %q", proposedType)
	}
	return true, ""
}

const (
	delayScoreOptimal = 100
	delayScoreNeutral = 70
	delayScoreFloor   = 30
	delayDecayPerDay  = 10
	// Width of the optimal window beyond the minimum delay, in days.
	delayOptimalWindow = 3
)

// delayScore rates how close the proposed date sits to the optimal window
// after the nearest prior dependent session. No dependency scores neutral.
func delayScore(history *courseHistory, proposedDate time.Time, proposedType models.SessionType, delays config.SequencingDelays) int {
	var anchor time.Time
	var minDelay int
	switch proposedType {
	case models.SessionTypeTD:
		if first, ok := history.firstDate(models.SessionTypeCM); ok {
			anchor, minDelay = first, delays.CMToTD
		}
	case models.SessionTypeTP:
		if first, ok := history.firstDate(models.SessionTypeTD); ok {
			anchor, minDelay = first, delays.TDToTP
		} else if first, ok := history.firstDate(models.SessionTypeCM); ok {
			anchor, minDelay = first, delays.CMToTP
		}
	case models.SessionTypeTPE:
		if first, ok := history.firstDate(models.SessionTypeCM); ok {
			anchor, minDelay = first, delays.CMToTPE
		}
	}
	if anchor.IsZero() {
		return delayScoreNeutral
	}

	gap := int(proposedDate.Sub(anchor).Hours() / 24)
	low := minDelay
	high := minDelay + delayOptimalWindow
	if gap >= low && gap <= high {
		return delayScoreOptimal
	}

	var distance int
	if gap < low {
		distance = low - gap
	} else {
		distance = gap - high
	}
	score := delayScoreOptimal - distance*delayDecayPerDay
	if score < delayScoreFloor {
		return delayScoreFloor
	}
	return score
}

// priorityScore is the pedagogical component of the placement score.
func priorityScore(sessionType models.SessionType, start string, weekday int, history *courseHistory, proposedDate time.Time, delays config.SequencingDelays) int {
	return timeScore(sessionType, start) + dayScore(sessionType, weekday) + delayScore(history, proposedDate, sessionType, delays)
}
