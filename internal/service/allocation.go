package service

import (
	"time"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

const dateKeyLayout = "2006-01-02"

type slotTimeKey struct {
	Date  string // "2006-01-02"
	Start string // "HH:MM"
}

type instructorWeekKey struct {
	InstructorID string
	Year         int
	Week         int
}

func makeSlotKey(date time.Time, start string) slotTimeKey {
	return slotTimeKey{Date: date.Format(dateKeyLayout), Start: start}
}

func makeWeekKey(instructorID string, date time.Time) instructorWeekKey {
	year, week := date.ISOWeek()
	return instructorWeekKey{InstructorID: instructorID, Year: year, Week: week}
}

// allocationIndex provides O(1) conflict lookups during a generation run.
// It is owned exclusively by a single run and never shared.
type allocationIndex struct {
	rooms       map[slotTimeKey]map[string]struct{}
	instructors map[slotTimeKey]map[string]struct{}
	weekHours   map[instructorWeekKey]float64
	roomUse     map[string]int
}

func newAllocationIndex() *allocationIndex {
	return &allocationIndex{
		rooms:       make(map[slotTimeKey]map[string]struct{}),
		instructors: make(map[slotTimeKey]map[string]struct{}),
		weekHours:   make(map[instructorWeekKey]float64),
		roomUse:     make(map[string]int),
	}
}

// MarkUsed records a committed placement in all three structures.
func (a *allocationIndex) MarkUsed(date time.Time, start, roomID, instructorID string, hours float64) {
	key := makeSlotKey(date, start)
	if a.rooms[key] == nil {
		a.rooms[key] = make(map[string]struct{})
	}
	a.rooms[key][roomID] = struct{}{}
	if a.instructors[key] == nil {
		a.instructors[key] = make(map[string]struct{})
	}
	a.instructors[key][instructorID] = struct{}{}
	a.weekHours[makeWeekKey(instructorID, date)] += hours
	a.roomUse[roomID]++
}

// RoomFree reports whether the room has no booking at (date, start).
func (a *allocationIndex) RoomFree(date time.Time, start, roomID string) bool {
	booked, ok := a.rooms[makeSlotKey(date, start)]
	if !ok {
		return true
	}
	_, taken := booked[roomID]
	return !taken
}

// InstructorFree reports whether the instructor has no booking at (date, start).
func (a *allocationIndex) InstructorFree(date time.Time, start, instructorID string) bool {
	booked, ok := a.instructors[makeSlotKey(date, start)]
	if !ok {
		return true
	}
	_, taken := booked[instructorID]
	return !taken
}

// InstructorWeekHours returns the committed hours for the ISO week containing date.
func (a *allocationIndex) InstructorWeekHours(instructorID string, date time.Time) float64 {
	return a.weekHours[makeWeekKey(instructorID, date)]
}

// RoomUseCount returns how many placements the room has absorbed so far.
func (a *allocationIndex) RoomUseCount(roomID string) int {
	return a.roomUse[roomID]
}

// PreloadOccurrences bulk-loads committed occurrences into the index in one
// pass. Inactive occurrences (cancelled, rescheduled) do not occupy resources.
func (a *allocationIndex) PreloadOccurrences(occurrences []models.Occurrence) {
	for i := range occurrences {
		occ := &occurrences[i]
		if !occ.Active() {
			continue
		}
		a.MarkUsed(occ.Date, occ.StartTime, occ.RoomID, occ.InstructorID, occ.DurationHours())
	}
}

// preloadWindowPadding extends the preload window on both sides to catch
// boundary conflicts (a week-straddling load total, for instance).
const preloadWindowPadding = 7 * 24 * time.Hour
