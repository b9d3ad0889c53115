package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

// TemplateRepository manages the abstract weekly entries behind a schedule.
type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListBySchedule returns templates ordered by time slot for stable expansion.
func (r *TemplateRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SessionTemplate, error) {
	const query = `SELECT id, schedule_id, course_id, room_id, instructor_id, time_slot_id, session_type,
specific_date, specific_start, specific_end, created_at
FROM session_templates WHERE schedule_id = $1 ORDER BY time_slot_id ASC, course_id ASC`
	var templates []models.SessionTemplate
	if err := r.db.SelectContext(ctx, &templates, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list session templates: %w", err)
	}
	return templates, nil
}

// UpsertBatch inserts or refreshes templates. The slot pattern is unique per
// (schedule_id, time_slot_id, room_id).
func (r *TemplateRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, templates []models.SessionTemplate) error {
	if len(templates) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO session_templates (id, schedule_id, course_id, room_id, instructor_id, time_slot_id, session_type,
	specific_date, specific_start, specific_end, created_at)
VALUES (:id, :schedule_id, :course_id, :room_id, :instructor_id, :time_slot_id, :session_type,
	:specific_date, :specific_start, :specific_end, :created_at)
ON CONFLICT (schedule_id, time_slot_id, room_id) DO UPDATE
SET course_id = EXCLUDED.course_id,
    instructor_id = EXCLUDED.instructor_id,
    session_type = EXCLUDED.session_type`

	for i := range templates {
		template := &templates[i]
		if template.ID == "" {
			template.ID = uuid.NewString()
		}
		if template.CreatedAt.IsZero() {
			template.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, template); err != nil {
			return fmt.Errorf("upsert session template: %w", err)
		}
	}
	return nil
}
