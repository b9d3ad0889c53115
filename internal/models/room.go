package models

import "time"

// Room represents a bookable teaching space.
type Room struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Capacity     int       `db:"capacity" json:"capacity"`
	HasProjector bool      `db:"has_projector" json:"has_projector"`
	HasComputer  bool      `db:"has_computer" json:"has_computer"`
	IsLaboratory bool      `db:"is_laboratory" json:"is_laboratory"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Satisfies reports whether the room covers the course's equipment and
// capacity requirements for the given class size.
func (r *Room) Satisfies(course *Course, studentCount int) bool {
	if r.Capacity < studentCount || r.Capacity < course.MinRoomCapacity {
		return false
	}
	if course.RequiresProjector && !r.HasProjector {
		return false
	}
	if course.RequiresComputer && !r.HasComputer {
		return false
	}
	if course.RequiresLaboratory && !r.IsLaboratory {
		return false
	}
	return true
}
