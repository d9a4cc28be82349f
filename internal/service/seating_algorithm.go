package service

import (
	"sort"
	"strconv"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

const missingRollNumber = "N/A"

// Allocation is the outcome of one allocator run.
type Allocation struct {
	Seats    []models.SeatAssignment
	Unseated []models.SeatCandidate
}

// AllocateSeats orders candidates by roll number (byte-wise, missing rolls first) and fills seats
// 1..capacity row by row, ColumnsPerRow seats per row. Candidates past capacity are returned unseated.
// The input slice is not modified.
func AllocateSeats(candidates []models.SeatCandidate, capacity int) Allocation {
	sorted := make([]models.SeatCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RollNumber < sorted[j].RollNumber
	})

	if capacity < 0 {
		capacity = 0
	}
	seated := len(sorted)
	if seated > capacity {
		seated = capacity
	}

	out := Allocation{Seats: make([]models.SeatAssignment, 0, seated)}
	for i, c := range sorted[:seated] {
		seat := i + 1
		row, column := SeatPosition(seat)
		roll := c.RollNumber
		if roll == "" {
			roll = missingRollNumber
		}
		student := models.Student{Department: c.Department, Course: c.Course, Semester: c.Semester}
		out.Seats = append(out.Seats, models.SeatAssignment{
			TicketID:          c.TicketID,
			StudentID:         c.StudentID,
			StudentName:       c.FullName,
			StudentRollNumber: roll,
			Class:             student.ClassLabel(),
			SeatNumber:        RowLabel(row) + strconv.Itoa(column),
			Row:               row,
			Column:            column,
		})
	}
	if seated < len(sorted) {
		out.Unseated = append(out.Unseated, sorted[seated:]...)
	}
	return out
}

// SeatPosition maps a 1-based seat number to its 1-based row and column.
func SeatPosition(seat int) (row, column int) {
	row = (seat + models.ColumnsPerRow - 1) / models.ColumnsPerRow
	column = (seat-1)%models.ColumnsPerRow + 1
	return row, column
}

// RowLabel renders a 1-based row as A..Z, then AA, AB, ... (bijective base 26).
func RowLabel(row int) string {
	if row <= 0 {
		return ""
	}
	var buf []byte
	for row > 0 {
		row--
		buf = append(buf, byte('A'+row%26))
		row /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
