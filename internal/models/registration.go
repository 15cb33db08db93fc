package models

import "time"

// Registration is the scheduling fact binding a student, an instructor and a
// class type at a start time. Parties are referenced by their natural
// identifiers, mirroring the legacy document store. Only the batch
// orchestrator mutates registrations.
type Registration struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	InstructorID    string    `db:"instructor_id" json:"instructor_id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail joins display names for listing endpoints.
type RegistrationDetail struct {
	Registration
	StudentName    *string `db:"student_name" json:"student_name,omitempty"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
	ClassName      *string `db:"class_name" json:"class_name,omitempty"`
}

// RegistrationFilter narrows registration listings.
type RegistrationFilter struct {
	StudentID    string
	InstructorID string
	ClassID      string
	Day          *time.Time
	SortBy       string
	SortOrder    string
	Page         int
	PageSize     int
}

// DailyCount is a projection row for the daily report: registrations per
// party on one calendar day.
type DailyCount struct {
	Kind  string `db:"kind" json:"kind"`
	Party string `db:"party" json:"party"`
	Count int    `db:"count" json:"count"`
}
