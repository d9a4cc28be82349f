package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SeatingStatus marks whether an arrangement may still be replaced.
type SeatingStatus string

const (
	SeatingStatusDraft     SeatingStatus = "Draft"
	SeatingStatusFinalized SeatingStatus = "Finalized"
)

// ColumnsPerRow is fixed for every hall.
const ColumnsPerRow = 10

// SeatAssignment is one seated student within an arrangement.
type SeatAssignment struct {
	TicketID          string `json:"ticket_id"`
	StudentID         string `json:"student_id"`
	StudentName       string `json:"student_name"`
	StudentRollNumber string `json:"student_roll_number"`
	Class             string `json:"class"`
	SeatNumber        string `json:"seat_number"`
	Row               int    `json:"row"`
	Column            int    `json:"column"`
}

// SeatingArrangement is the snapshot of one allocation run for an (exam, hall) pair.
type SeatingArrangement struct {
	ID           string         `db:"id" json:"id"`
	ExamID       string         `db:"exam_id" json:"exam_id"`
	HallID       string         `db:"hall_id" json:"hall_id"`
	Arrangements types.JSONText `db:"arrangements" json:"arrangements"`
	Unseated     types.JSONText `db:"unseated" json:"unseated"`
	Status       SeatingStatus  `db:"status" json:"status"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Seats decodes the stored assignments.
func (a SeatingArrangement) Seats() ([]SeatAssignment, error) {
	var seats []SeatAssignment
	if len(a.Arrangements) == 0 {
		return seats, nil
	}
	if err := json.Unmarshal(a.Arrangements, &seats); err != nil {
		return nil, fmt.Errorf("decode arrangement %s: %w", a.ID, err)
	}
	return seats, nil
}

// UnseatedStudents decodes the student ids left without a seat.
func (a SeatingArrangement) UnseatedStudents() ([]string, error) {
	var ids []string
	if len(a.Unseated) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(a.Unseated, &ids); err != nil {
		return nil, fmt.Errorf("decode unseated %s: %w", a.ID, err)
	}
	return ids, nil
}

// SetSeats encodes assignments and unseated ids into the JSONB columns.
func (a *SeatingArrangement) SetSeats(seats []SeatAssignment, unseated []string) error {
	if seats == nil {
		seats = []SeatAssignment{}
	}
	if unseated == nil {
		unseated = []string{}
	}
	rawSeats, err := json.Marshal(seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	rawUnseated, err := json.Marshal(unseated)
	if err != nil {
		return fmt.Errorf("encode unseated: %w", err)
	}
	a.Arrangements = types.JSONText(rawSeats)
	a.Unseated = types.JSONText(rawUnseated)
	return nil
}

// SeatingFilter constrains arrangement listings.
type SeatingFilter struct {
	ExamID string
	HallID string
	Status SeatingStatus
}

// StudentSeat is a student's own seat within one arrangement.
type StudentSeat struct {
	ArrangementID string         `json:"arrangement_id"`
	ExamID        string         `json:"exam_id"`
	ExamTitle     string         `json:"exam_title"`
	ExamDate      time.Time      `json:"exam_date"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	HallID        string         `json:"hall_id"`
	HallName      string         `json:"hall_name"`
	Status        SeatingStatus  `json:"status"`
	Seat          SeatAssignment `json:"seat"`
}

// StudentSeatingRow is the joined row the student seating view is built from.
type StudentSeatingRow struct {
	SeatingArrangement
	ExamTitle string    `db:"exam_title"`
	ExamDate  time.Time `db:"exam_date"`
	StartTime string    `db:"start_time"`
	EndTime   string    `db:"end_time"`
	HallName  string    `db:"hall_name"`
}
