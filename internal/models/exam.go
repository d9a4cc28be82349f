package models

import "time"

// ExamStatus is informational; no timer moves exams between states.
type ExamStatus string

const (
	ExamStatusUpcoming  ExamStatus = "upcoming"
	ExamStatusOngoing   ExamStatus = "ongoing"
	ExamStatusCompleted ExamStatus = "completed"
)

// Valid reports whether s is a known exam status.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamStatusUpcoming, ExamStatusOngoing, ExamStatusCompleted:
		return true
	}
	return false
}

// Exam is a scheduled assessment bound to one hall and one same-day time window.
type Exam struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Course          string     `db:"course" json:"course"`
	Semester        int        `db:"semester" json:"semester,omitempty"`
	Date            time.Time  `db:"exam_date" json:"date"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	TotalMarks      int        `db:"total_marks" json:"total_marks"`
	Hall            string     `db:"hall" json:"hall"`
	Instructions    string     `db:"instructions" json:"instructions,omitempty"`
	Status          ExamStatus `db:"status" json:"status"`
	Active          bool       `db:"active" json:"active"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Booked reports whether the exam occupies its hall slot.
func (e Exam) Booked() bool {
	return e.Active && e.Status != ExamStatusCompleted
}

// ExamFilter constrains exam listings.
type ExamFilter struct {
	Semester int
	Status   ExamStatus
	Hall     string
	Course   string
	Date     *time.Time
	Page     int
	PageSize int
}

// HallConflictError is returned when a candidate slot overlaps a booked exam.
type HallConflictError struct {
	Hall     string `json:"hall"`
	Date     string `json:"date"`
	Blocking Exam   `json:"blocking_exam"`
}

// Error implements the error interface for conflict errors.
func (e *HallConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "hall " + e.Hall + " is already booked on " + e.Date + " by " + e.Blocking.Title +
		" (" + e.Blocking.StartTime + "-" + e.Blocking.EndTime + ")"
}

// ErrorDetails exposes the blocking exam to API clients.
func (e *HallConflictError) ErrorDetails() interface{} {
	return e
}
