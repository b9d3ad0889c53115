package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

const courseColumns = `id, code, name, class_id, instructor_id, total_hours, weekly_hours,
min_sessions_per_week, max_sessions_per_week, min_room_capacity,
requires_projector, requires_computer, requires_laboratory,
difficulty_score, priority, hours_by_type, excluded_times, created_at, updated_at`

// CourseRepository reads the course catalogue.
type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns one course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListByClass returns every course attached to a class, highest priority first.
func (r *CourseRepository) ListByClass(ctx context.Context, classID string) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE class_id = $1 ORDER BY priority ASC, code ASC`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, classID); err != nil {
		return nil, fmt.Errorf("list courses by class: %w", err)
	}
	return courses, nil
}
