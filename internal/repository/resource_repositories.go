package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
)

// RoomRepository reads the bookable room pool.
type RoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListActive returns active rooms, optionally filtered by minimum capacity.
// A zero minCapacity returns the whole pool.
func (r *RoomRepository) ListActive(ctx context.Context, minCapacity int) ([]models.Room, error) {
	const query = `SELECT id, code, capacity, has_projector, has_computer, is_laboratory, active, created_at, updated_at
FROM rooms WHERE active = TRUE AND capacity >= $1 ORDER BY capacity ASC, code ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, minCapacity); err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return rooms, nil
}

// InstructorRepository reads the teaching staff.
type InstructorRepository struct {
	db *sqlx.DB
}

func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// ListActive returns every active instructor.
func (r *InstructorRepository) ListActive(ctx context.Context) ([]models.Instructor, error) {
	const query = `SELECT id, name, department, max_hours_per_week, preferred_days, unavailability, active, created_at, updated_at
FROM instructors WHERE active = TRUE ORDER BY name ASC`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query); err != nil {
		return nil, fmt.Errorf("list active instructors: %w", err)
	}
	return instructors, nil
}

// TimeSlotRepository reads the weekly teaching grid.
type TimeSlotRepository struct {
	db *sqlx.DB
}

func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListActive returns the active grid ordered by day then start time.
func (r *TimeSlotRepository) ListActive(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, day_of_week, start_time, end_time, active, created_at
FROM time_slots WHERE active = TRUE ORDER BY day_of_week ASC, start_time ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list active time slots: %w", err)
	}
	return slots, nil
}

// ClassRepository reads student groups.
type ClassRepository struct {
	db *sqlx.DB
}

func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns one class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, code, level, student_count, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}
