package models

import "time"

// ClassType is master data referenced by registrations through its natural
// identifier (ClassID). Same provisioning rule as Student.
type ClassType struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassTypeFilter narrows class-type listings.
type ClassTypeFilter struct {
	Search   string
	Page     int
	PageSize int
}
