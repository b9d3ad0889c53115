package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

// --- Store contracts consumed by the engine ---

type scheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type courseLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.Course, error)
}

type roomLister interface {
	ListActive(ctx context.Context, minCapacity int) ([]models.Room, error)
}

type instructorLister interface {
	ListActive(ctx context.Context) ([]models.Instructor, error)
}

type timeSlotLister interface {
	ListActive(ctx context.Context) ([]models.TimeSlot, error)
}

type occurrenceReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Occurrence, error)
	ListInWindow(ctx context.Context, from, to time.Time) ([]models.Occurrence, error)
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
}

type occurrenceWriter interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, occurrences []models.Occurrence) error
	DeleteInWindow(ctx context.Context, exec sqlx.ExtContext, scheduleID string, from, to time.Time, preserveModified bool) (int, error)
}

type templateReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.SessionTemplate, error)
}

type templateWriter interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, templates []models.SessionTemplate) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type runLocker interface {
	Acquire(ctx context.Context, scheduleID string) (bool, error)
	Release(ctx context.Context, scheduleID string)
}

type engineObserver interface {
	ObserveGeneration(outcome string, seconds float64, occurrences int)
	CountConflicts(conflicts []models.Conflict)
}

// GeneratorService orchestrates timetable generation for one schedule at a
// time: preload, difficulty ordering, greedy constraint-propagating placement
// and a single transactional commit.
type GeneratorService struct {
	schedules   scheduleReader
	classes     classReader
	courses     courseLister
	rooms       roomLister
	instructors instructorLister
	timeSlots   timeSlotLister
	occReader   occurrenceReader
	occWriter   occurrenceWriter
	tplReader   templateReader
	tplWriter   templateWriter
	tx          txProvider
	locks       runLocker
	metrics     engineObserver
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.EngineConfig
}

// NewGeneratorService wires generator dependencies.
func NewGeneratorService(
	schedules scheduleReader,
	classes classReader,
	courses courseLister,
	rooms roomLister,
	instructors instructorLister,
	timeSlots timeSlotLister,
	occReader occurrenceReader,
	occWriter occurrenceWriter,
	tplReader templateReader,
	tplWriter templateWriter,
	tx txProvider,
	locks runLocker,
	metrics engineObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.EngineConfig,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locks == nil {
		locks = newMemoryRunLocker()
	}
	return &GeneratorService{
		schedules:   schedules,
		classes:     classes,
		courses:     courses,
		rooms:       rooms,
		instructors: instructors,
		timeSlots:   timeSlots,
		occReader:   occReader,
		occWriter:   occWriter,
		tplReader:   tplReader,
		tplWriter:   tplWriter,
		tx:          tx,
		locks:       locks,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate runs the full pipeline and, unless preview mode is requested,
// persists the produced templates and occurrences in one transaction.
func (s *GeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerationResult, error) {
	started := time.Now()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}
	run, err := s.prepareRun(ctx, req)
	if err != nil {
		return nil, err
	}

	acquired, err := s.locks.Acquire(ctx, req.ScheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire schedule lock")
	}
	if !acquired {
		return nil, appErrors.Clone(appErrors.ErrLocked, "")
	}
	defer s.locks.Release(context.WithoutCancel(ctx), req.ScheduleID)

	if err := s.preload(ctx, run); err != nil {
		return nil, err
	}

	if err := s.place(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation cancelled")
		}
		if timeoutErr := (*appErrors.Error)(nil); errors.As(err, &timeoutErr) && timeoutErr.Code == appErrors.ErrTimeout.Code {
			result := run.result(false, "generation exceeded its wall-clock budget; nothing was persisted", started)
			s.observe("timeout", started, result)
			return result, nil
		}
		return nil, err
	}

	run.conflicts = append(run.conflicts, run.missingHourConflicts()...)

	feasible := run.feasible()
	if req.PreviewMode {
		result := run.result(feasible || req.AllowConflicts, previewMessage(feasible), started)
		result.Preview = run.preview()
		s.observe("preview", started, result)
		return result, nil
	}

	if !feasible && !req.AllowConflicts {
		result := run.result(false, "generation left unresolved conflicts and allowConflicts is disabled", started)
		s.observe("rejected", started, result)
		return result, nil
	}

	if err := s.commitWithRetry(ctx, run); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Code == appErrors.ErrConflict.Code {
			result := run.result(false, "commit aborted: a concurrent writer holds one of the placed slots", started)
			s.observe("commit_conflict", started, result)
			return result, nil
		}
		return nil, err
	}

	result := run.result(true, fmt.Sprintf("generated %d occurrence(s)", len(run.occurrences)), started)
	s.observe("success", started, result)
	s.logger.Info("generation completed",
		zap.String("schedule_id", req.ScheduleID),
		zap.Int("occurrences", len(run.occurrences)),
		zap.Int("conflicts", len(run.conflicts)),
		zap.Float64("elapsed_seconds", result.ElapsedSeconds),
	)
	return result, nil
}

func previewMessage(feasible bool) string {
	if feasible {
		return "preview generated; nothing was persisted"
	}
	return "preview generated with unresolved conflicts; nothing was persisted"
}

func (s *GeneratorService) observe(outcome string, started time.Time, result *dto.GenerationResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveGeneration(outcome, time.Since(started).Seconds(), result.OccurrencesCreated)
	s.metrics.CountConflicts(result.Conflicts)
}

// countPruned feeds candidates rejected during placement into the conflict
// counters so pruning pressure shows up alongside reported conflicts.
func (s *GeneratorService) countPruned(conflict *models.Conflict) {
	if s.metrics == nil || conflict == nil {
		return
	}
	s.metrics.CountConflicts([]models.Conflict{*conflict})
}

// --- Run state ---

type courseState struct {
	course       *models.Course
	required     map[models.SessionType]float64
	history      *courseHistory
	hoursPlanned float64
	sessionWeeks map[instructorWeekKey]int
	difficulty   float64
}

type generationRun struct {
	req         dto.GenerateScheduleRequest
	cfg         config.EngineConfig
	schedule    *models.Schedule
	class       *models.Class
	windowStart time.Time
	windowEnd   time.Time
	excluded    map[string]struct{}
	special     []specialWeek
	deadline    time.Time

	courses      []*courseState
	courseByID   map[string]*courseState
	rooms        []models.Room
	instructors  map[string]*models.Instructor
	slotsByDay   map[int][]models.TimeSlot
	slotByID     map[string]models.TimeSlot
	index        *allocationIndex
	preserved    []models.Occurrence
	templates    []models.SessionTemplate
	templateByID map[string]*models.SessionTemplate

	occurrences  []models.Occurrence
	newTemplates []models.SessionTemplate
	conflicts    []models.Conflict
}

func (s *GeneratorService) prepareRun(ctx context.Context, req dto.GenerateScheduleRequest) (*generationRun, error) {
	windowStart, err := time.Parse(dateKeyLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid startDate")
	}
	windowEnd, err := time.Parse(dateKeyLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid endDate")
	}
	if !windowEnd.After(windowStart) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "endDate must be after startDate")
	}

	// Optional sub-window for partial regeneration.
	if req.DateFrom != nil {
		if from, err := time.Parse(dateKeyLayout, *req.DateFrom); err == nil && from.After(windowStart) {
			windowStart = from
		}
	}
	if req.DateTo != nil {
		if to, err := time.Parse(dateKeyLayout, *req.DateTo); err == nil && to.Before(windowEnd) {
			windowEnd = to
		}
	}

	schedule, err := s.schedules.FindByID(ctx, req.ScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	class, err := s.classes.FindByID(ctx, schedule.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "schedule references an unknown class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	excluded := make(map[string]struct{}, len(req.ExcludedDates))
	for _, raw := range req.ExcludedDates {
		excluded[raw] = struct{}{}
	}
	special := make([]specialWeek, 0, len(req.SpecialWeeks))
	for _, week := range req.SpecialWeeks {
		start, startErr := time.Parse(dateKeyLayout, week.StartDate)
		end, endErr := time.Parse(dateKeyLayout, week.EndDate)
		if startErr != nil || endErr != nil || end.Before(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid special week bounds")
		}
		special = append(special, specialWeek{Start: start, End: end, SuspendRegular: week.SuspendRegular})
	}

	return &generationRun{
		req:          req,
		cfg:          s.cfg,
		schedule:     schedule,
		class:        class,
		windowStart:  windowStart,
		windowEnd:    windowEnd,
		excluded:     excluded,
		special:      special,
		deadline:     time.Now().Add(s.cfg.GenerationTimeout),
		courseByID:   make(map[string]*courseState),
		instructors:  make(map[string]*models.Instructor),
		slotsByDay:   make(map[int][]models.TimeSlot),
		slotByID:     make(map[string]models.TimeSlot),
		templateByID: make(map[string]*models.SessionTemplate),
		index:        newAllocationIndex(),
	}, nil
}

// preload performs the bulk reads that replace per-candidate queries: course
// relations, eligible rooms, staff, slots and the committed occurrence state
// around the planning window.
func (s *GeneratorService) preload(ctx context.Context, run *generationRun) error {
	courses, err := s.courses.ListByClass(ctx, run.schedule.ClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(courses) == 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no courses to schedule")
	}

	instructorCourseCount := make(map[string]int)
	for i := range courses {
		instructorCourseCount[courses[i].InstructorID]++
	}

	for i := range courses {
		course := &courses[i]
		required, err := course.SessionTypeHours()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, appErrors.ErrDataIntegrity.Status, "invalid course hour requirements")
		}
		state := &courseState{
			course:       course,
			required:     required,
			history:      newCourseHistory(),
			sessionWeeks: make(map[instructorWeekKey]int),
			difficulty:   courseDifficulty(course, required, instructorCourseCount),
		}
		run.courses = append(run.courses, state)
		run.courseByID[course.ID] = state

		if conflict := checkVolumeConsistency(course, run.windowStart, run.windowEnd, run.recurrence(), s.cfg.HourTolerancePct); conflict != nil {
			run.conflicts = append(run.conflicts, *conflict)
		}
	}

	// Most-constrained-variable ordering: hardest-to-place courses first.
	sort.SliceStable(run.courses, func(i, j int) bool {
		if run.courses[i].difficulty == run.courses[j].difficulty {
			return run.courses[i].course.Code < run.courses[j].course.Code
		}
		return run.courses[i].difficulty > run.courses[j].difficulty
	})

	rooms, err := s.rooms.ListActive(ctx, run.class.StudentCount)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	run.rooms = rooms

	instructors, err := s.instructors.ListActive(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	for i := range instructors {
		run.instructors[instructors[i].ID] = &instructors[i]
	}
	for _, state := range run.courses {
		if _, ok := run.instructors[state.course.InstructorID]; !ok {
			return appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("course %s references unknown instructor %s", state.course.Code, state.course.InstructorID))
		}
	}

	slots, err := s.timeSlots.ListActive(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	for _, slot := range slots {
		run.slotsByDay[slot.DayOfWeek] = append(run.slotsByDay[slot.DayOfWeek], slot)
		run.slotByID[slot.ID] = slot
	}
	for day := range run.slotsByDay {
		daySlots := run.slotsByDay[day]
		sort.Slice(daySlots, func(i, j int) bool { return daySlots[i].StartTime < daySlots[j].StartTime })
		run.slotsByDay[day] = daySlots
	}

	// Preload window extended by a week on both sides for boundary conflicts.
	existing, err := s.occReader.ListInWindow(ctx, run.windowStart.Add(-preloadWindowPadding), run.windowEnd.Add(preloadWindowPadding))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to preload occurrences")
	}
	for i := range existing {
		occ := &existing[i]
		inWindow := !occ.Date.Before(run.windowStart) && !occ.Date.After(run.windowEnd)
		if occ.ScheduleID != run.schedule.ID || !inWindow {
			// Foreign rows and own rows in the padding zone are fixed
			// occupancy; regeneration only ever touches in-window own rows.
			run.index.PreloadOccurrences(existing[i : i+1])
			continue
		}
		if !run.req.ForceRegenerate {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "schedule already has occurrences in this window; set forceRegenerate to rebuild")
		}
		if run.req.PreserveModifications && occ.HumanEdited() {
			run.preserved = append(run.preserved, *occ)
			run.index.PreloadOccurrences(existing[i : i+1])
			if state, ok := run.courseByID[occ.CourseID]; ok && occ.Active() {
				state.history.add(occ.Date, occ.SessionType, occ.DurationHours())
				state.hoursPlanned += occ.DurationHours()
			}
		}
	}

	templates, err := s.tplReader.ListBySchedule(ctx, run.schedule.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session templates")
	}
	run.templates = templates
	for i := range templates {
		run.templateByID[templates[i].ID] = &templates[i]
	}
	return nil
}

// courseDifficulty implements the most-constrained-variable heuristic. The
// optional predictor score and the operator priority act as hints on top.
func courseDifficulty(course *models.Course, required map[models.SessionType]float64, instructorCourseCount map[string]int) float64 {
	score := 0.0
	if required[models.SessionTypeCM] > 0 {
		score += 50 // morning-constrained
	}
	if required[models.SessionTypeTP] > 0 {
		score += 40 // afternoon-constrained
	}
	score += 2 * course.TotalHours
	if course.RequiresLaboratory {
		score += 30
	}
	if course.RequiresComputer {
		score += 20
	}
	if extra := instructorCourseCount[course.InstructorID] - 1; extra > 0 {
		score += float64(10 * extra)
	}
	if course.DifficultyScore != nil {
		score += *course.DifficultyScore
	}
	if course.Priority >= 1 && course.Priority <= 5 {
		score += float64((5 - course.Priority) * 5)
	}
	return score
}

func (r *generationRun) recurrence() string {
	if r.req.Recurrence == "" {
		return recurrenceWeekly
	}
	return r.req.Recurrence
}

func (r *generationRun) flexibility() string {
	if r.req.Flexibility == "" {
		return "balanced"
	}
	return r.req.Flexibility
}

func (r *generationRun) maxSessionsPerDay() int {
	if r.req.MaxSessionsPerDay > 0 {
		return r.req.MaxSessionsPerDay
	}
	if r.cfg.MaxSessionsPerDay > 0 {
		return r.cfg.MaxSessionsPerDay
	}
	return 8
}

func (r *generationRun) dayUsable(date time.Time) bool {
	weekday := isoWeekday(date)
	if weekday == 7 {
		return false
	}
	if weekday == 6 && !r.cfg.AllowSaturday {
		return false
	}
	if dateExcluded(date, r.excluded) {
		return false
	}
	if regularSuspended(date, r.special) {
		return false
	}
	return true
}

// place drives the placement loop. Template-backed schedules are
// re-materialised through the recurrence expander; fresh schedules go through
// greedy placement.
func (s *GeneratorService) place(ctx context.Context, run *generationRun) error {
	if len(run.templates) > 0 {
		return s.materialiseTemplates(ctx, run)
	}
	return s.placeGreedy(ctx, run)
}

// --- Greedy placement (fresh schedules) ---

func (s *GeneratorService) placeGreedy(ctx context.Context, run *generationRun) error {
	for date := run.windowStart; !date.After(run.windowEnd); date = date.AddDate(0, 0, 1) {
		// Cancellation and budget checks only between day iterations.
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(run.deadline) {
			return appErrors.Clone(appErrors.ErrTimeout, "")
		}
		if !run.dayUsable(date) {
			continue
		}

		sessionsToday := make(map[string]struct{})
		for _, occ := range run.preserved {
			if occ.Active() && occ.Date.Equal(date) {
				sessionsToday[occ.CourseID] = struct{}{}
			}
		}
		placedToday := len(sessionsToday)

		for _, slot := range run.slotsByDay[isoWeekday(date)] {
			if placedToday >= run.maxSessionsPerDay() {
				break
			}
			best := s.bestCandidate(run, date, slot, sessionsToday)
			if best == nil {
				continue
			}
			s.commitPlacement(run, best, nil)
			sessionsToday[best.Course.ID] = struct{}{}
			placedToday++
		}
	}
	return nil
}

type scoredCandidate struct {
	placementCandidate
	state *courseState
	slot  models.TimeSlot
	score float64
}

// bestCandidate evaluates every unfinished course against one (date, slot)
// pair and returns the highest-scoring placement, or nil when none fits.
func (s *GeneratorService) bestCandidate(run *generationRun, date time.Time, slot models.TimeSlot, sessionsToday map[string]struct{}) *scoredCandidate {
	duration := slot.DurationHours()
	if duration <= 0 {
		return nil
	}

	var totalSessions int
	for _, state := range run.courses {
		totalSessions += state.history.total()
	}
	avgSessions := 0.0
	if len(run.courses) > 0 {
		avgSessions = float64(totalSessions) / float64(len(run.courses))
	}

	var best *scoredCandidate
	for _, state := range run.courses {
		course := state.course
		if course.TotalHours > 0 && state.hoursPlanned >= course.TotalHours {
			continue
		}
		if _, placed := sessionsToday[course.ID]; placed {
			continue // one session per course per day
		}
		if course.MaxSessionsPerWeek > 0 && state.sessionWeeks[makeWeekKey(course.ID, date)] >= course.MaxSessionsPerWeek {
			continue
		}
		if courseExcludedAt(course, isoWeekday(date), slot.StartTime) {
			continue
		}

		proposedType := nextSessionType(state.history, state.remainingByType())
		if valid, _ := isValidSequence(state.history, date, proposedType, s.cfg.Delays); !valid {
			continue
		}

		instructor := run.instructors[course.InstructorID]
		candidate := placementCandidate{
			Course:       course,
			SessionType:  proposedType,
			Date:         date,
			Start:        slot.StartTime,
			End:          slot.EndTime,
			InstructorID: course.InstructorID,
			Duration:     duration,
		}
		if !s.instructorAvailable(run, &candidate, instructor) {
			continue
		}
		room := s.selectRoom(run, course, date, slot.StartTime)
		if room == nil {
			continue
		}
		candidate.RoomID = room.ID
		candidate.RoomCode = room.Code

		score := s.placementScore(run, state, proposedType, slot, date, avgSessions)
		if best == nil || score > best.score {
			best = &scoredCandidate{placementCandidate: candidate, state: state, slot: slot, score: score}
		}
	}
	return best
}

func (s *GeneratorService) placementScore(run *generationRun, state *courseState, proposedType models.SessionType, slot models.TimeSlot, date time.Time, avgSessions float64) float64 {
	pedagogical := float64(priorityScore(proposedType, slot.StartTime, isoWeekday(date), state.history, date, s.cfg.Delays))

	coverage := 0.0
	if state.course.TotalHours > 0 {
		coverage = (1 - state.hoursPlanned/state.course.TotalHours) * 30
		if coverage > 30 {
			coverage = 30
		}
	}

	distribution := math.Max(0, (avgSessions-float64(state.history.total()))*50)
	if distribution > 100 {
		distribution = 100
	}

	weights := s.cfg.Weights
	return weights.Pedagogical*pedagogical + weights.Coverage*coverage + weights.Distribution*distribution
}

func (state *courseState) remainingByType() map[models.SessionType]float64 {
	remaining := make(map[models.SessionType]float64, len(state.required))
	for sessionType, hours := range state.required {
		left := hours - state.history.hoursOf(sessionType)
		if left > 0 {
			remaining[sessionType] = left
		}
	}
	return remaining
}

func courseExcludedAt(course *models.Course, weekday int, start string) bool {
	for _, window := range course.ExcludedWindows() {
		if window.DayOfWeek != weekday {
			continue
		}
		if window.StartTime <= start && start < window.EndTime {
			return true
		}
	}
	return false
}

func (s *GeneratorService) instructorAvailable(run *generationRun, candidate *placementCandidate, instructor *models.Instructor) bool {
	if instructor == nil {
		return false
	}
	if conflict := instructorBookedConflict(run.index, candidate, instructor.Name); conflict != nil {
		s.countPruned(conflict)
		return false
	}
	if conflict := instructorOverloadConflict(run.index, candidate, instructor, s.cfg.WeeklyLoadToleranceHours); conflict != nil {
		s.countPruned(conflict)
		return false
	}
	if run.req.RespectInstructorPreferences {
		if preferred := instructor.PreferredDaySet(); len(preferred) > 0 {
			if _, ok := preferred[isoWeekday(candidate.Date)]; !ok {
				return false
			}
		}
	}
	windows, err := instructor.UnavailableWindows()
	if err != nil {
		// Malformed availability payloads block the instructor outright
		// rather than silently over-scheduling them.
		return false
	}
	for _, window := range windows {
		if instructorBlockedBy(window, candidate.Date, candidate.Start, candidate.End) {
			return false
		}
	}
	return true
}

func instructorBlockedBy(window models.InstructorUnavailability, date time.Time, start, end string) bool {
	if window.StartDate != nil && window.EndDate != nil {
		return !date.Before(*window.StartDate) && !date.After(*window.EndDate)
	}
	if window.DayOfWeek == "" {
		return false
	}
	if weekdayNameToIndex(window.DayOfWeek) != isoWeekday(date) {
		return false
	}
	if window.TimeRange == "" {
		return true // whole day blocked
	}
	parts := strings.SplitN(window.TimeRange, "-", 2)
	if len(parts) != 2 {
		return true
	}
	blockStart, blockEnd := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	return start < blockEnd && blockStart < end
}

var weekdayNames = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

func weekdayNameToIndex(name string) int {
	return weekdayNames[strings.ToUpper(strings.TrimSpace(name))]
}

// selectRoom picks the eligible free room minimising capacity waste, with a
// strong penalty on reuse so load spreads across the pool.
func (s *GeneratorService) selectRoom(run *generationRun, course *models.Course, date time.Time, start string) *models.Room {
	var best *models.Room
	bestCost := math.MaxFloat64
	for i := range run.rooms {
		room := &run.rooms[i]
		if !room.Satisfies(course, run.class.StudentCount) {
			continue
		}
		if !run.index.RoomFree(date, start, room.ID) {
			continue
		}
		cost := math.Abs(float64(room.Capacity-run.class.StudentCount)) + 100*float64(run.index.RoomUseCount(room.ID))
		if cost < bestCost {
			bestCost = cost
			best = room
		}
	}
	return best
}

// commitPlacement records an accepted candidate: occurrence, indices, course
// history and, for greedy runs, the backing weekly template.
func (s *GeneratorService) commitPlacement(run *generationRun, candidate *scoredCandidate, existingTemplate *models.SessionTemplate) {
	templateID := ""
	if existingTemplate != nil {
		templateID = existingTemplate.ID
	} else {
		templateID = run.ensureTemplate(candidate)
	}

	run.occurrences = append(run.occurrences, models.Occurrence{
		ID:           uuid.NewString(),
		TemplateID:   templateID,
		ScheduleID:   run.schedule.ID,
		CourseID:     candidate.Course.ID,
		SessionType:  candidate.SessionType,
		Date:         candidate.Date,
		StartTime:    candidate.Start,
		EndTime:      candidate.End,
		RoomID:       candidate.RoomID,
		InstructorID: candidate.InstructorID,
		Status:       models.OccurrenceStatusScheduled,
	})

	run.index.MarkUsed(candidate.Date, candidate.Start, candidate.RoomID, candidate.InstructorID, candidate.Duration)
	if candidate.state != nil {
		candidate.state.history.add(candidate.Date, candidate.SessionType, candidate.Duration)
		candidate.state.hoursPlanned += candidate.Duration
		candidate.state.sessionWeeks[makeWeekKey(candidate.Course.ID, candidate.Date)]++
	}
}

// ensureTemplate returns the id of the weekly template matching the placement
// pattern, creating it on first use.
func (r *generationRun) ensureTemplate(candidate *scoredCandidate) string {
	for i := range r.newTemplates {
		tpl := &r.newTemplates[i]
		if tpl.CourseID == candidate.Course.ID &&
			tpl.SessionType == candidate.SessionType &&
			tpl.TimeSlotID == candidate.slot.ID &&
			tpl.RoomID == candidate.RoomID {
			return tpl.ID
		}
	}
	tpl := models.SessionTemplate{
		ID:           uuid.NewString(),
		ScheduleID:   r.schedule.ID,
		CourseID:     candidate.Course.ID,
		RoomID:       candidate.RoomID,
		InstructorID: candidate.InstructorID,
		TimeSlotID:   candidate.slot.ID,
		SessionType:  candidate.SessionType,
	}
	r.newTemplates = append(r.newTemplates, tpl)
	return tpl.ID
}

// --- Template materialisation (regeneration of template-backed schedules) ---

func (s *GeneratorService) materialiseTemplates(ctx context.Context, run *generationRun) error {
	for i := range run.templates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(run.deadline) {
			return appErrors.Clone(appErrors.ErrTimeout, "")
		}
		if err := s.materialiseTemplate(run, &run.templates[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *GeneratorService) materialiseTemplate(run *generationRun, tpl *models.SessionTemplate) error {
	state, ok := run.courseByID[tpl.CourseID]
	if !ok {
		return appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("template %s references unknown course %s", tpl.ID, tpl.CourseID))
	}
	slot, ok := run.slotByID[tpl.TimeSlotID]
	if !ok {
		return appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("template %s references unknown time slot %s", tpl.ID, tpl.TimeSlotID))
	}
	if tpl.SpecificDate != nil && tpl.SpecificStart != nil && tpl.SpecificEnd != nil {
		s.materialiseCandidate(run, state, tpl, slot, occurrenceCandidate{Date: *tpl.SpecificDate, Start: *tpl.SpecificStart, End: *tpl.SpecificEnd})
		return nil
	}

	capHours := state.required[tpl.SessionType]
	candidates := expandTemplate(expansionInput{
		Slot:          slot,
		WindowStart:   run.windowStart,
		WindowEnd:     run.windowEnd,
		Recurrence:    run.recurrence(),
		ExcludedDates: run.excluded,
		SpecialWeeks:  run.special,
		TotalHours:    capHours,
		MonthlyStep:   run.cfg.MonthlyStep,
	})

	for _, candidate := range candidates {
		if capHours > 0 && state.history.hoursOf(tpl.SessionType) >= capHours {
			break
		}
		s.materialiseCandidate(run, state, tpl, slot, candidate)
	}
	return nil
}

func (s *GeneratorService) materialiseCandidate(run *generationRun, state *courseState, tpl *models.SessionTemplate, slot models.TimeSlot, candidate occurrenceCandidate) {
	// A preserved human edit on the same template and date wins over
	// regeneration.
	for _, kept := range run.preserved {
		if kept.TemplateID == tpl.ID && kept.Date.Equal(candidate.Date) {
			return
		}
	}
	if !run.dayUsable(candidate.Date) {
		return
	}

	duration := models.DurationHours(candidate.Start, candidate.End)
	placement := scoredCandidate{
		placementCandidate: placementCandidate{
			Course:       state.course,
			SessionType:  tpl.SessionType,
			Date:         candidate.Date,
			Start:        candidate.Start,
			End:          candidate.End,
			InstructorID: tpl.InstructorID,
			Duration:     duration,
		},
		state: state,
		slot:  slot,
	}

	resolved, roomModified, timeShift := s.resolvePlacement(run, &placement, tpl)
	if !resolved {
		// The template slot can only fail resolution when its room is taken,
		// so the pruning predicate always yields the structured record.
		booked := placement.placementCandidate
		booked.RoomID = tpl.RoomID
		booked.RoomCode = roomCodeFor(run, tpl.RoomID)
		if conflict := roomBookedConflict(run.index, &booked); conflict != nil {
			conflict.Severity = models.SeverityHigh
			conflict.Message = fmt.Sprintf("no room available for %s on %s %s", state.course.Code, candidate.Date.Format(dateKeyLayout), candidate.Start)
			run.conflicts = append(run.conflicts, *conflict)
		}
		return
	}

	instructor := run.instructors[placement.InstructorID]
	if !s.instructorAvailable(run, &placement.placementCandidate, instructor) {
		return
	}

	s.commitPlacement(run, &placement, tpl)
	if roomModified || timeShift {
		last := &run.occurrences[len(run.occurrences)-1]
		last.RoomModified = roomModified
		last.TimeModified = timeShift
	}
}

// resolvePlacement applies the flexibility policy: rigid keeps the template
// room or skips, balanced substitutes the best available room, flexible
// additionally tries a one-day shift on either side.
func (s *GeneratorService) resolvePlacement(run *generationRun, placement *scoredCandidate, tpl *models.SessionTemplate) (resolved, roomModified, timeShift bool) {
	tryDate := func(date time.Time) (bool, bool) {
		if run.index.RoomFree(date, placement.Start, tpl.RoomID) {
			placement.Date = date
			placement.RoomID = tpl.RoomID
			placement.RoomCode = roomCodeFor(run, tpl.RoomID)
			return true, false
		}
		if run.flexibility() == "rigid" || run.req.RespectRoomPreferences {
			return false, false
		}
		if substitute := s.selectRoom(run, placement.Course, date, placement.Start); substitute != nil {
			placement.Date = date
			placement.RoomID = substitute.ID
			placement.RoomCode = substitute.Code
			return true, true
		}
		return false, false
	}

	if ok, modified := tryDate(placement.Date); ok {
		return true, modified, false
	}
	if run.flexibility() != "flexible" {
		return false, false, false
	}
	for _, delta := range []int{-1, 1} {
		shifted := placement.Date.AddDate(0, 0, delta)
		if shifted.Before(run.windowStart) || shifted.After(run.windowEnd) || !run.dayUsable(shifted) {
			continue
		}
		if ok, modified := tryDate(shifted); ok {
			return true, modified, true
		}
	}
	return false, false, false
}

func roomCodeFor(run *generationRun, roomID string) string {
	for i := range run.rooms {
		if run.rooms[i].ID == roomID {
			return run.rooms[i].Code
		}
	}
	return roomID
}

// --- Completion, results, persistence ---

// missingHourConflicts reports one conflict per missing session unit for
// every (course, session type) short of its requirement beyond the tolerance.
func (r *generationRun) missingHourConflicts() []models.Conflict {
	sessionHours := r.typicalSessionHours()
	var conflicts []models.Conflict
	for _, state := range r.courses {
		for _, sessionType := range models.AllSessionTypes {
			required := state.required[sessionType]
			if required <= 0 {
				continue
			}
			missing := required - state.history.hoursOf(sessionType)
			if missing <= required*r.cfg.HourTolerancePct {
				continue
			}
			units := int(math.Ceil(missing / sessionHours))
			for i := 0; i < units; i++ {
				conflicts = append(conflicts, models.Conflict{
					Type:     models.ConflictMissingCourseHours,
					Severity: models.SeverityCritical,
					Resource: state.course.Code,
					Courses:  []string{state.course.Code},
					Message: fmt.Sprintf("course %s is missing %.1fh of %s (%.1fh of %.1fh placed)",
						state.course.Code, missing, sessionType, state.history.hoursOf(sessionType), required),
				})
			}
		}
	}
	return conflicts
}

func (r *generationRun) typicalSessionHours() float64 {
	var total float64
	var count int
	for _, slots := range r.slotsByDay {
		for _, slot := range slots {
			if d := slot.DurationHours(); d > 0 {
				total += d
				count++
			}
		}
	}
	if count == 0 {
		return 2
	}
	return total / float64(count)
}

func (r *generationRun) feasible() bool {
	return !models.HasCritical(r.conflicts)
}

func (r *generationRun) result(success bool, message string, started time.Time) *dto.GenerationResult {
	return &dto.GenerationResult{
		Success:            success,
		Message:            message,
		OccurrencesCreated: len(r.occurrences),
		ConflictsDetected:  len(r.conflicts),
		Conflicts:          r.conflicts,
		ElapsedSeconds:     time.Since(started).Seconds(),
	}
}

func (r *generationRun) preview() []dto.OccurrencePreview {
	preview := make([]dto.OccurrencePreview, 0, len(r.occurrences))
	for i := range r.occurrences {
		occ := &r.occurrences[i]
		courseCode := occ.CourseID
		if state, ok := r.courseByID[occ.CourseID]; ok {
			courseCode = state.course.Code
		}
		instructorName := occ.InstructorID
		if instructor, ok := r.instructors[occ.InstructorID]; ok {
			instructorName = instructor.Name
		}
		preview = append(preview, dto.OccurrencePreview{
			CourseCode:  courseCode,
			SessionType: string(occ.SessionType),
			Date:        occ.Date.Format(dateKeyLayout),
			StartTime:   occ.StartTime,
			EndTime:     occ.EndTime,
			RoomCode:    roomCodeFor(r, occ.RoomID),
			Instructor:  instructorName,
		})
	}
	return preview
}

// commitWithRetry persists the run in one transaction, retrying once when a
// concurrent writer triggers a uniqueness conflict.
func (s *GeneratorService) commitWithRetry(ctx context.Context, run *generationRun) error {
	err := s.commit(ctx, run)
	if err == nil {
		return nil
	}
	if appErrors.FromError(err).Code != appErrors.ErrConflict.Code {
		return err
	}
	s.logger.Warn("commit hit a uniqueness conflict, retrying once", zap.String("schedule_id", run.schedule.ID))
	return s.commit(ctx, run)
}

func (s *GeneratorService) commit(ctx context.Context, run *generationRun) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if run.req.ForceRegenerate {
		if _, err = s.occWriter.DeleteInWindow(ctx, tx, run.schedule.ID, run.windowStart, run.windowEnd, run.req.PreserveModifications); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear previous occurrences")
			return err
		}
	}
	if len(run.newTemplates) > 0 {
		if err = s.tplWriter.UpsertBatch(ctx, tx, run.newTemplates); err != nil {
			return err
		}
	}
	if len(run.occurrences) > 0 {
		if err = s.occWriter.BulkCreateWithTx(ctx, tx, run.occurrences); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit generation transaction")
		return err
	}
	return nil
}
