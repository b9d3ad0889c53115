package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

// --- Pruning predicates (generation-time) ---
//
// These run before a candidate placement is committed; each returns nil when
// the candidate is clean.

type placementCandidate struct {
	Course       *models.Course
	SessionType  models.SessionType
	Date         time.Time
	Start        string
	End          string
	RoomID       string
	RoomCode     string
	InstructorID string
	Duration     float64
}

func (c *placementCandidate) timeRange() string {
	return fmt.Sprintf("%s-%s", c.Start, c.End)
}

func roomBookedConflict(index *allocationIndex, candidate *placementCandidate) *models.Conflict {
	if index.RoomFree(candidate.Date, candidate.Start, candidate.RoomID) {
		return nil
	}
	return &models.Conflict{
		Type:     models.ConflictRoomDoubleBooking,
		Severity: models.SeverityCritical,
		Date:     candidate.Date.Format(dateKeyLayout),
		Time:     candidate.timeRange(),
		Resource: candidate.RoomCode,
		Courses:  []string{candidate.Course.Code},
		Message:  fmt.Sprintf("room %s is already booked at %s %s", candidate.RoomCode, candidate.Date.Format(dateKeyLayout), candidate.timeRange()),
	}
}

func instructorBookedConflict(index *allocationIndex, candidate *placementCandidate, instructorName string) *models.Conflict {
	if index.InstructorFree(candidate.Date, candidate.Start, candidate.InstructorID) {
		return nil
	}
	return &models.Conflict{
		Type:     models.ConflictInstructorDoubleBooking,
		Severity: models.SeverityCritical,
		Date:     candidate.Date.Format(dateKeyLayout),
		Time:     candidate.timeRange(),
		Resource: instructorName,
		Courses:  []string{candidate.Course.Code},
		Message:  fmt.Sprintf("instructor %s is already booked at %s %s", instructorName, candidate.Date.Format(dateKeyLayout), candidate.timeRange()),
	}
}

func instructorOverloadConflict(index *allocationIndex, candidate *placementCandidate, instructor *models.Instructor, toleranceHours float64) *models.Conflict {
	if instructor.MaxHoursPerWeek <= 0 {
		return nil
	}
	current := index.InstructorWeekHours(candidate.InstructorID, candidate.Date)
	if current+candidate.Duration <= instructor.MaxHoursPerWeek+toleranceHours {
		return nil
	}
	return &models.Conflict{
		Type:     models.ConflictInstructorOverload,
		Severity: models.SeverityHigh,
		Date:     candidate.Date.Format(dateKeyLayout),
		Time:     candidate.timeRange(),
		Resource: instructor.Name,
		Courses:  []string{candidate.Course.Code},
		Message: fmt.Sprintf("instructor %s would reach %.1fh, above the weekly limit of %.1fh",
			instructor.Name, current+candidate.Duration, instructor.MaxHoursPerWeek),
	}
}

// --- Post-hoc audit ---

// auditContext holds the lookup tables the audit needs alongside the
// occurrence list.
type auditContext struct {
	Courses      map[string]*models.Course
	Rooms        map[string]*models.Room
	Instructors  map[string]*models.Instructor
	StudentCount int
}

// auditOccurrences walks a finalised occurrence set grouped by (date, start)
// and reports every double booking, equipment mismatch, overcapacity and
// weekly instructor overload.
func auditOccurrences(occurrences []models.Occurrence, lookup auditContext) []models.Conflict {
	var conflicts []models.Conflict

	type groupKey struct {
		Date  string
		Start string
	}
	groups := make(map[groupKey][]*models.Occurrence)
	for i := range occurrences {
		occ := &occurrences[i]
		if !occ.Active() {
			continue
		}
		key := groupKey{Date: occ.Date.Format(dateKeyLayout), Start: occ.StartTime}
		groups[key] = append(groups[key], occ)

		conflicts = append(conflicts, auditEquipment(occ, lookup)...)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date == keys[j].Date {
			return keys[i].Start < keys[j].Start
		}
		return keys[i].Date < keys[j].Date
	})

	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		conflicts = append(conflicts, auditDoubleBookings(group, lookup)...)
	}

	conflicts = append(conflicts, auditWeeklyLoads(occurrences, lookup)...)
	return conflicts
}

// auditWeeklyLoads sums active hours per instructor and ISO week. Manual
// edits bypass the generation-time overload check, so the audit has to
// recompute the ledger from scratch.
func auditWeeklyLoads(occurrences []models.Occurrence, lookup auditContext) []models.Conflict {
	type weekLoad struct {
		hours float64
		first *models.Occurrence
	}
	loads := make(map[instructorWeekKey]*weekLoad)
	for i := range occurrences {
		occ := &occurrences[i]
		if !occ.Active() {
			continue
		}
		key := makeWeekKey(occ.InstructorID, occ.Date)
		load, ok := loads[key]
		if !ok {
			load = &weekLoad{first: occ}
			loads[key] = load
		}
		load.hours += occ.DurationHours()
		if occ.Date.Before(load.first.Date) {
			load.first = occ
		}
	}

	keys := make([]instructorWeekKey, 0, len(loads))
	for key := range loads {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].InstructorID != keys[j].InstructorID {
			return keys[i].InstructorID < keys[j].InstructorID
		}
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Week < keys[j].Week
	})

	var conflicts []models.Conflict
	for _, key := range keys {
		instructor, known := lookup.Instructors[key.InstructorID]
		if !known || instructor.MaxHoursPerWeek <= 0 {
			continue
		}
		load := loads[key]
		if load.hours <= instructor.MaxHoursPerWeek {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictInstructorOverload,
			Severity: models.SeverityHigh,
			Date:     load.first.Date.Format(dateKeyLayout),
			Time:     fmt.Sprintf("%s-%s", load.first.StartTime, load.first.EndTime),
			Resource: instructor.Name,
			Message: fmt.Sprintf("instructor %s is scheduled %.1fh in week %d, above the weekly limit of %.1fh",
				instructor.Name, load.hours, key.Week, instructor.MaxHoursPerWeek),
		})
	}
	return conflicts
}

func auditDoubleBookings(group []*models.Occurrence, lookup auditContext) []models.Conflict {
	var conflicts []models.Conflict

	byRoom := make(map[string][]*models.Occurrence)
	byInstructor := make(map[string][]*models.Occurrence)
	for _, occ := range group {
		byRoom[occ.RoomID] = append(byRoom[occ.RoomID], occ)
		byInstructor[occ.InstructorID] = append(byInstructor[occ.InstructorID], occ)
	}

	for roomID, members := range byRoom {
		if len(members) < 2 {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictRoomDoubleBooking,
			Severity: models.SeverityCritical,
			Date:     members[0].Date.Format(dateKeyLayout),
			Time:     fmt.Sprintf("%s-%s", members[0].StartTime, members[0].EndTime),
			Resource: roomLabel(lookup.Rooms, roomID),
			Courses:  courseCodes(lookup.Courses, members),
			Message:  fmt.Sprintf("room %s hosts %d sessions at the same time", roomLabel(lookup.Rooms, roomID), len(members)),
		})
	}

	for instructorID, members := range byInstructor {
		if len(members) < 2 {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictInstructorDoubleBooking,
			Severity: models.SeverityCritical,
			Date:     members[0].Date.Format(dateKeyLayout),
			Time:     fmt.Sprintf("%s-%s", members[0].StartTime, members[0].EndTime),
			Resource: instructorLabel(lookup.Instructors, instructorID),
			Courses:  courseCodes(lookup.Courses, members),
			Message:  fmt.Sprintf("instructor %s teaches %d sessions at the same time", instructorLabel(lookup.Instructors, instructorID), len(members)),
		})
	}
	return conflicts
}

func auditEquipment(occ *models.Occurrence, lookup auditContext) []models.Conflict {
	course, courseKnown := lookup.Courses[occ.CourseID]
	room, roomKnown := lookup.Rooms[occ.RoomID]
	if !courseKnown || !roomKnown {
		return nil
	}

	var conflicts []models.Conflict
	missing := missingEquipment(course, room)
	if len(missing) > 0 {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictEquipmentMismatch,
			Severity: models.SeverityMedium,
			Date:     occ.Date.Format(dateKeyLayout),
			Time:     fmt.Sprintf("%s-%s", occ.StartTime, occ.EndTime),
			Resource: room.Code,
			Courses:  []string{course.Code},
			Message:  fmt.Sprintf("room %s lacks %v required by %s", room.Code, missing, course.Code),
		})
	}
	if lookup.StudentCount > 0 && room.Capacity < lookup.StudentCount {
		conflicts = append(conflicts, models.Conflict{
			Type:     models.ConflictRoomOvercapacity,
			Severity: models.SeverityMedium,
			Date:     occ.Date.Format(dateKeyLayout),
			Time:     fmt.Sprintf("%s-%s", occ.StartTime, occ.EndTime),
			Resource: room.Code,
			Courses:  []string{course.Code},
			Message:  fmt.Sprintf("room %s seats %d but %d students are expected", room.Code, room.Capacity, lookup.StudentCount),
		})
	}
	return conflicts
}

func missingEquipment(course *models.Course, room *models.Room) []string {
	var missing []string
	if course.RequiresProjector && !room.HasProjector {
		missing = append(missing, "projector")
	}
	if course.RequiresComputer && !room.HasComputer {
		missing = append(missing, "computers")
	}
	if course.RequiresLaboratory && !room.IsLaboratory {
		missing = append(missing, "laboratory")
	}
	return missing
}

func roomLabel(rooms map[string]*models.Room, id string) string {
	if room, ok := rooms[id]; ok {
		return room.Code
	}
	return id
}

func instructorLabel(instructors map[string]*models.Instructor, id string) string {
	if instructor, ok := instructors[id]; ok {
		return instructor.Name
	}
	return id
}

func courseCodes(courses map[string]*models.Course, members []*models.Occurrence) []string {
	codes := make([]string, 0, len(members))
	for _, occ := range members {
		if course, ok := courses[occ.CourseID]; ok {
			codes = append(codes, course.Code)
		} else {
			codes = append(codes, occ.CourseID)
		}
	}
	sort.Strings(codes)
	return codes
}

// --- Service ---

// ConflictService audits finalised schedules and exposes the risk score.
type ConflictService struct {
	schedules   scheduleReader
	classes     classReader
	courses     courseLister
	rooms       roomLister
	instructors instructorLister
	occurrences occurrenceReader
	logger      *zap.Logger
}

// NewConflictService wires detector dependencies.
func NewConflictService(
	schedules scheduleReader,
	classes classReader,
	courses courseLister,
	rooms roomLister,
	instructors instructorLister,
	occurrences occurrenceReader,
	logger *zap.Logger,
) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		schedules:   schedules,
		classes:     classes,
		courses:     courses,
		rooms:       rooms,
		instructors: instructors,
		occurrences: occurrences,
		logger:      logger,
	}
}

// DetectConflicts runs the post-hoc audit for a stored schedule.
func (s *ConflictService) DetectConflicts(ctx context.Context, scheduleID string) ([]models.Conflict, int, error) {
	if scheduleID == "" {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	lookup, occurrences, err := s.loadAuditContext(ctx, schedule)
	if err != nil {
		return nil, 0, err
	}

	conflicts := auditOccurrences(occurrences, lookup)
	risk := models.RiskScore(conflicts)
	s.logger.Info("conflict audit completed",
		zap.String("schedule_id", scheduleID),
		zap.Int("occurrences", len(occurrences)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("risk_score", risk),
	)
	return conflicts, risk, nil
}

func (s *ConflictService) loadAuditContext(ctx context.Context, schedule *models.Schedule) (auditContext, []models.Occurrence, error) {
	lookup := auditContext{
		Courses:     make(map[string]*models.Course),
		Rooms:       make(map[string]*models.Room),
		Instructors: make(map[string]*models.Instructor),
	}

	class, err := s.classes.FindByID(ctx, schedule.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lookup, nil, appErrors.Clone(appErrors.ErrDataIntegrity, "schedule references an unknown class")
		}
		return lookup, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	lookup.StudentCount = class.StudentCount

	courses, err := s.courses.ListByClass(ctx, schedule.ClassID)
	if err != nil {
		return lookup, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	for i := range courses {
		lookup.Courses[courses[i].ID] = &courses[i]
	}

	rooms, err := s.rooms.ListActive(ctx, 0)
	if err != nil {
		return lookup, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	for i := range rooms {
		lookup.Rooms[rooms[i].ID] = &rooms[i]
	}

	instructors, err := s.instructors.ListActive(ctx)
	if err != nil {
		return lookup, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	for i := range instructors {
		lookup.Instructors[instructors[i].ID] = &instructors[i]
	}

	occurrences, err := s.occurrences.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return lookup, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrences")
	}
	return lookup, occurrences, nil
}
