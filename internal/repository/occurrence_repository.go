package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

const occurrenceColumns = `id, template_id, schedule_id, course_id, session_type, date, start_time, end_time,
room_id, instructor_id, status, room_modified, instructor_modified, time_modified,
cancelled, cancellation_reason, rescheduled_from, notes, created_at, updated_at`

// pq error code for unique_violation.
const uniqueViolationCode = "23505"

// OccurrenceRepository manages dated session instances.
type OccurrenceRepository struct {
	db *sqlx.DB
}

func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// FindByID returns one occurrence.
func (r *OccurrenceRepository) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrences WHERE id = $1`, occurrenceColumns)
	var occurrence models.Occurrence
	if err := r.db.GetContext(ctx, &occurrence, query, id); err != nil {
		return nil, fmt.Errorf("find occurrence: %w", err)
	}
	return &occurrence, nil
}

// ListBySchedule returns every occurrence of a schedule in chronological order.
func (r *OccurrenceRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Occurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrences WHERE schedule_id = $1 ORDER BY date ASC, start_time ASC`, occurrenceColumns)
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list occurrences by schedule: %w", err)
	}
	return occurrences, nil
}

// ListInWindow returns all occurrences across schedules inside [from, to],
// the generator's cross-schedule conflict horizon.
func (r *OccurrenceRepository) ListInWindow(ctx context.Context, from, to time.Time) ([]models.Occurrence, error) {
	query := fmt.Sprintf(`SELECT %s FROM occurrences WHERE date BETWEEN $1 AND $2 ORDER BY date ASC, start_time ASC`, occurrenceColumns)
	var occurrences []models.Occurrence
	if err := r.db.SelectContext(ctx, &occurrences, query, from, to); err != nil {
		return nil, fmt.Errorf("list occurrences in window: %w", err)
	}
	return occurrences, nil
}

const occurrenceInsert = `
INSERT INTO occurrences (id, template_id, schedule_id, course_id, session_type, date, start_time, end_time,
	room_id, instructor_id, status, room_modified, instructor_modified, time_modified,
	cancelled, cancellation_reason, rescheduled_from, notes, created_at, updated_at)
VALUES (:id, :template_id, :schedule_id, :course_id, :session_type, :date, :start_time, :end_time,
	:room_id, :instructor_id, :status, :room_modified, :instructor_modified, :time_modified,
	:cancelled, :cancellation_reason, :rescheduled_from, :notes, :created_at, :updated_at)`

// Create inserts one occurrence.
func (r *OccurrenceRepository) Create(ctx context.Context, occurrence *models.Occurrence) error {
	stampForInsert(occurrence)
	if _, err := r.db.NamedExecContext(ctx, occurrenceInsert, occurrence); err != nil {
		return wrapUniqueViolation(err, "create occurrence")
	}
	return nil
}

// BulkCreateWithTx inserts a generation batch inside the caller's transaction.
// A unique violation surfaces as a typed conflict so the caller can retry.
func (r *OccurrenceRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, occurrences []models.Occurrence) error {
	for i := range occurrences {
		stampForInsert(&occurrences[i])
		if _, err := tx.NamedExecContext(ctx, occurrenceInsert, &occurrences[i]); err != nil {
			return wrapUniqueViolation(err, "bulk create occurrences")
		}
	}
	return nil
}

// Update persists lifecycle changes on one occurrence.
func (r *OccurrenceRepository) Update(ctx context.Context, occurrence *models.Occurrence) error {
	occurrence.UpdatedAt = time.Now().UTC()

	const query = `
UPDATE occurrences
SET date = :date, start_time = :start_time, end_time = :end_time,
    room_id = :room_id, instructor_id = :instructor_id, status = :status,
    room_modified = :room_modified, instructor_modified = :instructor_modified, time_modified = :time_modified,
    cancelled = :cancelled, cancellation_reason = :cancellation_reason,
    rescheduled_from = :rescheduled_from, notes = :notes, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, occurrence); err != nil {
		return wrapUniqueViolation(err, "update occurrence")
	}
	return nil
}

// DeleteInWindow clears a schedule's occurrences inside [from, to] ahead of
// regeneration. With preserveModified set, human-edited instances survive.
func (r *OccurrenceRepository) DeleteInWindow(ctx context.Context, exec sqlx.ExtContext, scheduleID string, from, to time.Time, preserveModified bool) (int, error) {
	target := sqlx.ExtContext(r.db)
	if exec != nil {
		target = exec
	}

	query := `DELETE FROM occurrences WHERE schedule_id = $1 AND date BETWEEN $2 AND $3`
	if preserveModified {
		query += ` AND room_modified = FALSE AND instructor_modified = FALSE AND time_modified = FALSE AND cancelled = FALSE`
	}
	result, err := target.ExecContext(ctx, query, scheduleID, from, to)
	if err != nil {
		return 0, fmt.Errorf("delete occurrences in window: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

func stampForInsert(occurrence *models.Occurrence) {
	now := time.Now().UTC()
	if occurrence.CreatedAt.IsZero() {
		occurrence.CreatedAt = now
	}
	occurrence.UpdatedAt = now
	if occurrence.Status == "" {
		occurrence.Status = models.OccurrenceStatusScheduled
	}
}

func wrapUniqueViolation(err error, operation string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "occurrence slot is already taken")
	}
	return fmt.Errorf("%s: %w", operation, err)
}
