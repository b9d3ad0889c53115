package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

const scheduleColumns = `id, class_id, academic_period, status, meta, created_at, updated_at`

// ScheduleRepository manages timetable containers.
type ScheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID returns one schedule.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &schedule, nil
}

// List returns schedules newest first, optionally filtered by class.
func (r *ScheduleRepository) List(ctx context.Context, classID string) ([]models.Schedule, error) {
	var schedules []models.Schedule
	if classID != "" {
		query := fmt.Sprintf(`SELECT %s FROM schedules WHERE class_id = $1 ORDER BY created_at DESC`, scheduleColumns)
		if err := r.db.SelectContext(ctx, &schedules, query, classID); err != nil {
			return nil, fmt.Errorf("list schedules by class: %w", err)
		}
		return schedules, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM schedules ORDER BY created_at DESC`, scheduleColumns)
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	if len(schedule.Meta) == 0 {
		schedule.Meta = []byte(`{}`)
	}

	const query = `
INSERT INTO schedules (id, class_id, academic_period, status, meta, created_at, updated_at)
VALUES (:id, :class_id, :academic_period, :status, :meta, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// UpdateStatus moves a schedule to a new workflow status.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	const query = `UPDATE schedules SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule and cascades to its templates and occurrences.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
