package models

import "time"

// Instructor is master data referenced by registrations through its natural
// identifier (InstructorID). Same provisioning rule as Student.
type Instructor struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	Expertise    string    `db:"expertise" json:"expertise,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// InstructorFilter narrows instructor listings.
type InstructorFilter struct {
	Search   string
	Page     int
	PageSize int
}
