package models

// ConflictType classifies a scheduling conflict. The values are wire-stable.
type ConflictType string

const (
	ConflictRoomDoubleBooking       ConflictType = "room_double_booking"
	ConflictInstructorDoubleBooking ConflictType = "instructor_double_booking"
	ConflictInstructorOverload      ConflictType = "instructor_overload"
	ConflictEquipmentMismatch       ConflictType = "equipment_mismatch"
	ConflictRoomOvercapacity        ConflictType = "room_overcapacity"
	ConflictVolumeInconsistency     ConflictType = "volume_inconsistency"
	ConflictMissingCourseHours      ConflictType = "missing_course_hours"
)

// ConflictSeverity grades how damaging a conflict is.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// Conflict is the structured record emitted by the detector.
type Conflict struct {
	Type     ConflictType     `json:"type"`
	Severity ConflictSeverity `json:"severity"`
	Date     string           `json:"date,omitempty"` // ISO-8601 date
	Time     string           `json:"time,omitempty"` // "HH:MM-HH:MM"
	Resource string           `json:"resource,omitempty"`
	Courses  []string         `json:"courses,omitempty"`
	Message  string           `json:"message"`
}

var severityWeights = map[ConflictSeverity]int{
	SeverityCritical: 50,
	SeverityHigh:     30,
	SeverityMedium:   15,
	SeverityLow:      5,
}

// RiskScore aggregates conflict severities into a 0-100 score.
func RiskScore(conflicts []Conflict) int {
	total := 0
	for _, conflict := range conflicts {
		total += severityWeights[conflict.Severity]
	}
	if total > 100 {
		total = 100
	}
	return total
}

// HasCritical reports whether any conflict is of critical severity.
func HasCritical(conflicts []Conflict) bool {
	for _, conflict := range conflicts {
		if conflict.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
