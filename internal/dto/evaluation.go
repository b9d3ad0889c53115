package dto

// HardViolations counts schedule-invalidating defects.
type HardViolations struct {
	RoomConflicts       int `json:"roomConflicts"`
	InstructorConflicts int `json:"instructorConflicts"`
	MissingCourseHours  int `json:"missingCourseHours"`
}

// Total sums all hard violation counters.
func (h HardViolations) Total() int {
	return h.RoomConflicts + h.InstructorConflicts + h.MissingCourseHours
}

// SoftScores holds the weighted quality components, each on a 0-100 scale
// before weighting.
type SoftScores struct {
	PedagogicalQuality     float64 `json:"pedagogicalQuality"`
	InstructorSatisfaction float64 `json:"instructorSatisfaction"`
	RoomUtilisation        float64 `json:"roomUtilisation"`
	StudentLoadBalance     float64 `json:"studentLoadBalance"`
	InstructorLoadBalance  float64 `json:"instructorLoadBalance"`
}

// ScoreReport is the full evaluation of a finalised schedule.
//
// JSON cannot carry -Inf, so an infeasible schedule is reported with
// Feasible=false, grade F and a zero global score alongside the violation
// counters.
type ScoreReport struct {
	ScheduleID      string         `json:"scheduleId"`
	Feasible        bool           `json:"feasible"`
	GlobalScore     float64        `json:"globalScore"`
	Grade           string         `json:"grade"`
	HardViolations  HardViolations `json:"hardViolations"`
	SoftScores      SoftScores     `json:"softScores"`
	RiskScore       int            `json:"riskScore"`
	ConflictCount   int            `json:"conflictCount"`
	OccurrenceCount int            `json:"occurrenceCount"`
	EvaluatedAt     string         `json:"evaluatedAt"`
}
