package models

import (
	"fmt"
	"time"
)

// Student is the directory projection the exam engine needs about a learner.
type Student struct {
	ID         string    `db:"id" json:"id"`
	RollNumber string    `db:"roll_number" json:"roll_number"`
	FullName   string    `db:"full_name" json:"full_name"`
	Department string    `db:"department" json:"department"`
	Course     string    `db:"course" json:"course"`
	Semester   int       `db:"semester" json:"semester"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ClassLabel picks course, then department, then semester, then "General".
func (s Student) ClassLabel() string {
	switch {
	case s.Course != "":
		return s.Course
	case s.Department != "":
		return s.Department
	case s.Semester > 0:
		return fmt.Sprintf("Semester %d", s.Semester)
	default:
		return "General"
	}
}
