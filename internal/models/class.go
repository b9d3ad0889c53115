package models

import "time"

// Class represents a cohort of students following a shared timetable.
type Class struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Level        string    `db:"level" json:"level"`
	StudentCount int       `db:"student_count" json:"student_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
