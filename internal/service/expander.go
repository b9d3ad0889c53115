package service

import (
	"fmt"
	"math"
	"time"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	"github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/config"
)

// Recurrence policies.
const (
	recurrenceWeekly   = "weekly"
	recurrenceBiweekly = "biweekly"
	recurrenceMonthly  = "monthly"
)

// occurrenceCandidate is an abstract dated slot emitted by the expander. No
// resources are committed; the generator decides acceptance.
type occurrenceCandidate struct {
	Date  time.Time
	Start string
	End   string
}

// specialWeek is the parsed form of a special-week override.
type specialWeek struct {
	Start          time.Time
	End            time.Time
	SuspendRegular bool
}

// expansionInput bundles everything the expander needs for one template.
type expansionInput struct {
	Slot          models.TimeSlot
	WindowStart   time.Time
	WindowEnd     time.Time
	Recurrence    string
	ExcludedDates map[string]struct{} // "2006-01-02"
	SpecialWeeks  []specialWeek
	TotalHours    float64 // 0 = bounded by the window only
	MonthlyStep   string
}

// expandTemplate materialises the finite ordered candidate list for one
// weekly template over the planning window.
func expandTemplate(in expansionInput) []occurrenceCandidate {
	targetWeekday := in.Slot.DayOfWeek
	if targetWeekday < 1 || targetWeekday > 7 {
		return nil
	}

	current := advanceToWeekday(in.WindowStart, targetWeekday)
	if current.After(in.WindowEnd) {
		return nil
	}

	duration := in.Slot.DurationHours()
	maxOccurrences := math.MaxInt32
	if in.TotalHours > 0 && duration > 0 {
		maxOccurrences = int(math.Ceil(in.TotalHours / duration))
	}

	var candidates []occurrenceCandidate
	for !current.After(in.WindowEnd) && len(candidates) < maxOccurrences {
		if !dateExcluded(current, in.ExcludedDates) && !regularSuspended(current, in.SpecialWeeks) {
			candidates = append(candidates, occurrenceCandidate{
				Date:  current,
				Start: in.Slot.StartTime,
				End:   in.Slot.EndTime,
			})
		}
		current = advanceRecurrence(current, in.Recurrence, in.MonthlyStep, targetWeekday)
	}
	return candidates
}

// advanceToWeekday moves date forward to the first occurrence of the target
// ISO weekday (1=Monday..7=Sunday), possibly date itself.
func advanceToWeekday(date time.Time, target int) time.Time {
	current := isoWeekday(date)
	offset := (target - current + 7) % 7
	return date.AddDate(0, 0, offset)
}

func isoWeekday(date time.Time) int {
	weekday := int(date.Weekday())
	if weekday == 0 {
		return 7
	}
	return weekday
}

// advanceRecurrence steps to the next candidate date. Monthly advancement
// follows the deployment policy: calendar months realigned to the target
// weekday, or a fixed four-week step that preserves the weekday by itself.
func advanceRecurrence(current time.Time, recurrence, monthlyStep string, targetWeekday int) time.Time {
	switch recurrence {
	case recurrenceBiweekly:
		return current.AddDate(0, 0, 14)
	case recurrenceMonthly:
		if monthlyStep == config.MonthlyStepFixed30 {
			return current.AddDate(0, 0, 28)
		}
		return advanceToWeekday(current.AddDate(0, 1, 0), targetWeekday)
	default:
		return current.AddDate(0, 0, 7)
	}
}

func dateExcluded(date time.Time, excluded map[string]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	_, ok := excluded[date.Format(dateKeyLayout)]
	return ok
}

func regularSuspended(date time.Time, weeks []specialWeek) bool {
	for _, week := range weeks {
		if week.SuspendRegular && !date.Before(week.Start) && !date.After(week.End) {
			return true
		}
	}
	return false
}

// recurrenceStepWeeks converts the policy into its week stride for volume checks.
func recurrenceStepWeeks(recurrence string) float64 {
	switch recurrence {
	case recurrenceBiweekly:
		return 2
	case recurrenceMonthly:
		return 4
	default:
		return 1
	}
}

// checkVolumeConsistency cross-checks total_hours against hours_per_week over
// the window. A discrepancy above the tolerance yields a warning conflict; it
// never aborts generation.
func checkVolumeConsistency(course *models.Course, windowStart, windowEnd time.Time, recurrence string, tolerancePct float64) *models.Conflict {
	if course.TotalHours <= 0 || course.WeeklyHours <= 0 {
		return nil
	}
	weeks := windowEnd.Sub(windowStart).Hours() / (24 * 7)
	if weeks <= 0 {
		return nil
	}
	effectiveWeeks := weeks / recurrenceStepWeeks(recurrence)
	expected := course.WeeklyHours * effectiveWeeks
	if expected <= 0 {
		return nil
	}
	deviation := math.Abs(expected-course.TotalHours) / course.TotalHours
	if deviation <= tolerancePct {
		return nil
	}
	return &models.Conflict{
		Type:     models.ConflictVolumeInconsistency,
		Severity: models.SeverityLow,
		Resource: course.Code,
		Message: fmt.Sprintf(
			"course %s declares %.1f total hours but %.1f weekly hours over %.0f week(s) imply %.1f",
			course.Code, course.TotalHours, course.WeeklyHours, effectiveWeeks, expected,
		),
	}
}
