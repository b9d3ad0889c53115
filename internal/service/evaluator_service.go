package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/dto"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

const evalCachePrefix = "engine:eval:schedule:"

// Grade thresholds on the 0-1000 global scale.
const (
	gradeAThreshold = 800
	gradeBThreshold = 600
	gradeCThreshold = 400
	gradeDThreshold = 200
)

// Ideal operating bands for the load-balance components.
const (
	roomFillTarget            = 0.70
	studentDayHoursMin        = 4.0
	studentDayHoursMax        = 6.0
	instructorWeekHoursMin    = 12.0
	instructorWeekHoursMax    = 18.0
	studentBandPenaltyPerH    = 15.0
	instructorBandPenaltyPerH = 5.0
	instructorGapPenalty      = 10.0
	instructorGapGraceHours   = 1.0
)

// EvaluatorService scores finalised schedules. Hard violations make a
// schedule infeasible; soft components produce the weighted global score.
type EvaluatorService struct {
	schedules   scheduleReader
	classes     classReader
	courses     courseLister
	rooms       roomLister
	instructors instructorLister
	occurrences occurrenceReader
	cache       *redis.Client
	logger      *zap.Logger
	engineCfg   config.EngineConfig
	cfg         config.EvaluationConfig
}

// NewEvaluatorService wires evaluator dependencies. The cache client may be
// nil, in which case every call recomputes the report.
func NewEvaluatorService(
	schedules scheduleReader,
	classes classReader,
	courses courseLister,
	rooms roomLister,
	instructors instructorLister,
	occurrences occurrenceReader,
	cache *redis.Client,
	logger *zap.Logger,
	engineCfg config.EngineConfig,
	cfg config.EvaluationConfig,
) *EvaluatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluatorService{
		schedules:   schedules,
		classes:     classes,
		courses:     courses,
		rooms:       rooms,
		instructors: instructors,
		occurrences: occurrences,
		cache:       cache,
		logger:      logger,
		engineCfg:   engineCfg,
		cfg:         cfg,
	}
}

// Evaluate produces the full score report for a stored schedule.
func (s *EvaluatorService) Evaluate(ctx context.Context, scheduleID string) (*dto.ScoreReport, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	if cached := s.cachedReport(ctx, scheduleID); cached != nil {
		return cached, nil
	}

	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	input, err := s.loadEvaluationInput(ctx, schedule)
	if err != nil {
		return nil, err
	}

	report := s.score(schedule.ID, input)
	s.storeReport(ctx, report)

	s.logger.Info("schedule evaluated",
		zap.String("schedule_id", scheduleID),
		zap.Bool("feasible", report.Feasible),
		zap.Float64("global_score", report.GlobalScore),
		zap.String("grade", report.Grade),
	)
	return report, nil
}

// Invalidate drops a cached report after the schedule changes.
func (s *EvaluatorService) Invalidate(ctx context.Context, scheduleID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, evalCachePrefix+scheduleID).Err(); err != nil {
		s.logger.Warn("failed to invalidate evaluation cache", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

func (s *EvaluatorService) cachedReport(ctx context.Context, scheduleID string) *dto.ScoreReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, evalCachePrefix+scheduleID).Bytes()
	if err != nil {
		return nil
	}
	var report dto.ScoreReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return &report
}

func (s *EvaluatorService) storeReport(ctx context.Context, report *dto.ScoreReport) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, evalCachePrefix+report.ScheduleID, raw, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn("failed to cache evaluation report", zap.String("schedule_id", report.ScheduleID), zap.Error(err))
	}
}

// evaluationInput bundles the loaded state the scorer runs over.
type evaluationInput struct {
	lookup      auditContext
	occurrences []models.Occurrence
}

func (s *EvaluatorService) loadEvaluationInput(ctx context.Context, schedule *models.Schedule) (*evaluationInput, error) {
	lookup := auditContext{
		Courses:     make(map[string]*models.Course),
		Rooms:       make(map[string]*models.Room),
		Instructors: make(map[string]*models.Instructor),
	}

	class, err := s.classes.FindByID(ctx, schedule.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "schedule references an unknown class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	lookup.StudentCount = class.StudentCount

	courses, err := s.courses.ListByClass(ctx, schedule.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	for i := range courses {
		lookup.Courses[courses[i].ID] = &courses[i]
	}

	rooms, err := s.rooms.ListActive(ctx, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	for i := range rooms {
		lookup.Rooms[rooms[i].ID] = &rooms[i]
	}

	instructors, err := s.instructors.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructors")
	}
	for i := range instructors {
		lookup.Instructors[instructors[i].ID] = &instructors[i]
	}

	occurrences, err := s.occurrences.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrences")
	}
	return &evaluationInput{lookup: lookup, occurrences: occurrences}, nil
}

// score is the pure scoring core; it touches no stores.
func (s *EvaluatorService) score(scheduleID string, input *evaluationInput) *dto.ScoreReport {
	conflicts := auditOccurrences(input.occurrences, input.lookup)

	hard := dto.HardViolations{
		MissingCourseHours: s.countMissingHours(input),
	}
	for _, conflict := range conflicts {
		switch conflict.Type {
		case models.ConflictRoomDoubleBooking:
			hard.RoomConflicts++
		case models.ConflictInstructorDoubleBooking:
			hard.InstructorConflicts++
		}
	}

	active := activeOccurrences(input.occurrences)
	report := &dto.ScoreReport{
		ScheduleID:      scheduleID,
		HardViolations:  hard,
		RiskScore:       models.RiskScore(conflicts),
		ConflictCount:   len(conflicts),
		OccurrenceCount: len(active),
		EvaluatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if hard.Total() > 0 {
		report.Feasible = false
		report.Grade = "F"
		report.GlobalScore = 0
		return report
	}

	soft := dto.SoftScores{
		PedagogicalQuality:     s.pedagogicalQuality(active, input.lookup),
		InstructorSatisfaction: s.instructorSatisfaction(active, input.lookup),
		RoomUtilisation:        s.roomUtilisation(active, input.lookup),
		StudentLoadBalance:     s.studentLoadBalance(active),
		InstructorLoadBalance:  s.instructorLoadBalance(active),
	}
	report.Feasible = true
	report.SoftScores = soft
	report.GlobalScore = s.globalScore(soft)
	report.Grade = gradeFor(report.GlobalScore)
	return report
}

func activeOccurrences(occurrences []models.Occurrence) []models.Occurrence {
	active := make([]models.Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.Active() {
			active = append(active, occ)
		}
	}
	return active
}

// countMissingHours compares placed hours per (course, session type) against
// the declared requirements, within the configured tolerance.
func (s *EvaluatorService) countMissingHours(input *evaluationInput) int {
	placed := make(map[string]map[models.SessionType]float64)
	for _, occ := range input.occurrences {
		if !occ.Active() {
			continue
		}
		if placed[occ.CourseID] == nil {
			placed[occ.CourseID] = make(map[models.SessionType]float64)
		}
		placed[occ.CourseID][occ.SessionType] += occ.DurationHours()
	}

	missing := 0
	for courseID, course := range input.lookup.Courses {
		required, err := course.SessionTypeHours()
		if err != nil {
			missing++
			continue
		}
		for sessionType, hours := range required {
			if hours <= 0 {
				continue
			}
			if hours-placed[courseID][sessionType] > hours*s.engineCfg.HourTolerancePct {
				missing++
			}
		}
	}
	return missing
}

// pedagogicalQuality replays the sequencer score over the committed
// occurrences and normalises the mean to 0-100.
func (s *EvaluatorService) pedagogicalQuality(active []models.Occurrence, lookup auditContext) float64 {
	if len(active) == 0 {
		return 0
	}

	histories := make(map[string]*courseHistory)
	ordered := make([]models.Occurrence, len(active))
	copy(ordered, active)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].StartTime < ordered[j].StartTime
		}
		return ordered[i].Date.Before(ordered[j].Date)
	})

	var total float64
	for _, occ := range ordered {
		history := histories[occ.CourseID]
		if history == nil {
			history = newCourseHistory()
			histories[occ.CourseID] = history
		}
		// priorityScore spans 60-300 (three 0-100 components with floors).
		raw := priorityScore(occ.SessionType, occ.StartTime, isoWeekday(occ.Date), history, occ.Date, s.engineCfg.Delays)
		total += float64(raw) / 3
		history.add(occ.Date, occ.SessionType, occ.DurationHours())
	}
	return clampScore(total / float64(len(ordered)))
}

// instructorSatisfaction penalises idle gaps between an instructor's
// same-day sessions beyond one hour plus the transition buffer.
func (s *EvaluatorService) instructorSatisfaction(active []models.Occurrence, lookup auditContext) float64 {
	type dayKey struct {
		InstructorID string
		Date         string
	}
	days := make(map[dayKey][]models.Occurrence)
	for _, occ := range active {
		key := dayKey{InstructorID: occ.InstructorID, Date: occ.Date.Format(dateKeyLayout)}
		days[key] = append(days[key], occ)
	}

	grace := instructorGapGraceHours + s.engineCfg.TransitionBuffer.Hours()
	score := 100.0
	for _, sessions := range days {
		sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartTime < sessions[j].StartTime })
		for i := 1; i < len(sessions); i++ {
			gap := clockGapHours(sessions[i-1].EndTime, sessions[i].StartTime)
			if gap > grace {
				score -= instructorGapPenalty
			}
		}
	}
	return clampScore(score)
}

func clockGapHours(end, start string) float64 {
	endMin, err := models.ParseClock(end)
	if err != nil {
		return 0
	}
	startMin, err := models.ParseClock(start)
	if err != nil {
		return 0
	}
	if startMin <= endMin {
		return 0
	}
	return float64(startMin-endMin) / 60.0
}

// roomUtilisation rates how close each session's seat fill sits to the
// target occupancy ratio.
func (s *EvaluatorService) roomUtilisation(active []models.Occurrence, lookup auditContext) float64 {
	if len(active) == 0 || lookup.StudentCount == 0 {
		return 0
	}
	var totalDeviation float64
	var counted int
	for _, occ := range active {
		room, ok := lookup.Rooms[occ.RoomID]
		if !ok || room.Capacity == 0 {
			continue
		}
		fill := float64(lookup.StudentCount) / float64(room.Capacity)
		totalDeviation += math.Abs(fill - roomFillTarget)
		counted++
	}
	if counted == 0 {
		return 0
	}
	meanDeviation := totalDeviation / float64(counted)
	return clampScore(100 - meanDeviation/roomFillTarget*100)
}

// studentLoadBalance rates daily class hours against the ideal band.
func (s *EvaluatorService) studentLoadBalance(active []models.Occurrence) float64 {
	if len(active) == 0 {
		return 0
	}
	daily := make(map[string]float64)
	for _, occ := range active {
		daily[occ.Date.Format(dateKeyLayout)] += occ.DurationHours()
	}

	var total float64
	for _, hours := range daily {
		total += bandScore(hours, studentDayHoursMin, studentDayHoursMax, studentBandPenaltyPerH)
	}
	return clampScore(total / float64(len(daily)))
}

// instructorLoadBalance rates weekly instructor hours against the ideal band.
func (s *EvaluatorService) instructorLoadBalance(active []models.Occurrence) float64 {
	if len(active) == 0 {
		return 0
	}
	weekly := make(map[instructorWeekKey]float64)
	for _, occ := range active {
		weekly[makeWeekKey(occ.InstructorID, occ.Date)] += occ.DurationHours()
	}

	var total float64
	for _, hours := range weekly {
		total += bandScore(hours, instructorWeekHoursMin, instructorWeekHoursMax, instructorBandPenaltyPerH)
	}
	return clampScore(total / float64(len(weekly)))
}

// bandScore gives 100 inside [low, high] and decays per hour outside.
func bandScore(value, low, high, penaltyPerHour float64) float64 {
	switch {
	case value < low:
		return clampScore(100 - (low-value)*penaltyPerHour)
	case value > high:
		return clampScore(100 - (value-high)*penaltyPerHour)
	default:
		return 100
	}
}

// globalScore folds the components into the 0-1000 scale: the weighted mean
// of the 0-100 components, times ten.
func (s *EvaluatorService) globalScore(soft dto.SoftScores) float64 {
	weights := []float64{
		s.cfg.WeightPedagogical,
		s.cfg.WeightInstructorSatisfaction,
		s.cfg.WeightRoomUtilisation,
		s.cfg.WeightStudentLoadBalance,
		s.cfg.WeightInstructorLoadBalance,
	}
	components := []float64{
		soft.PedagogicalQuality,
		soft.InstructorSatisfaction,
		soft.RoomUtilisation,
		soft.StudentLoadBalance,
		soft.InstructorLoadBalance,
	}

	var weighted, totalWeight float64
	for i := range weights {
		weighted += weights[i] * components[i]
		totalWeight += weights[i]
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Round(weighted/totalWeight*10*100) / 100
}

func gradeFor(globalScore float64) string {
	switch {
	case globalScore > gradeAThreshold:
		return "A"
	case globalScore > gradeBThreshold:
		return "B"
	case globalScore > gradeCThreshold:
		return "C"
	case globalScore > gradeDThreshold:
		return "D"
	default:
		return "F"
	}
}

func clampScore(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
