package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

func TestSeatingRepositoryCreateWithSeatsCommits(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSeatingRepository(db)

	arrangement := &models.SeatingArrangement{ExamID: "exam-1", HallID: "hall-1", Status: models.SeatingStatusDraft, CreatedBy: "admin"}
	seats := []models.SeatAssignment{
		{TicketID: "t1", StudentID: "s1", SeatNumber: "A1", Row: 1, Column: 1},
		{TicketID: "t2", StudentID: "s2", SeatNumber: "A2", Row: 1, Column: 2},
	}
	require.NoError(t, arrangement.SetSeats(seats, []string{"s3"}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO seating_arrangements").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE hall_tickets SET seat_number = $1")).
		WithArgs("A1", sqlmock.AnyArg(), "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE hall_tickets SET seat_number = $1")).
		WithArgs("A2", sqlmock.AnyArg(), "t2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithSeats(context.Background(), arrangement, seats))
	assert.NotEmpty(t, arrangement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingRepositoryCreateWithSeatsRollsBack(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSeatingRepository(db)

	arrangement := &models.SeatingArrangement{ExamID: "exam-1", HallID: "hall-1", Status: models.SeatingStatusDraft}
	seats := []models.SeatAssignment{{TicketID: "t1", SeatNumber: "A1"}}
	require.NoError(t, arrangement.SetSeats(seats, nil))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO seating_arrangements").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE hall_tickets SET seat_number = $1")).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := repo.CreateWithSeats(context.Background(), arrangement, seats)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingRepositoryFinalizeOnlyDrafts(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSeatingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE seating_arrangements SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("sa-1", models.SeatingStatusFinalized, sqlmock.AnyArg(), models.SeatingStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Finalize(context.Background(), "sa-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE seating_arrangements SET status = $2")).
		WithArgs("sa-1", models.SeatingStatusFinalized, sqlmock.AnyArg(), models.SeatingStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Finalize(context.Background(), "sa-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingRepositoryHasFinalized(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSeatingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM seating_arrangements WHERE exam_id = $1 AND hall_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("exam-1", "hall-1", models.SeatingStatusFinalized).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.HasFinalized(context.Background(), "exam-1", "hall-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatingRepositoryListForStudentUsesContainment(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewSeatingRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "exam_id", "hall_id", "arrangements", "unseated", "status", "created_by", "created_at", "updated_at", "exam_title", "exam_date", "start_time", "end_time", "hall_name"}).
		AddRow("sa-1", "exam-1", "hall-1", []byte(`[{"student_id":"s1","seat_number":"A1","row":1,"column":1}]`), []byte(`[]`), "Draft", "admin", now, now, "Physics", now, "10:00", "12:00", "Main Hall")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sa.arrangements @> $1::jsonb AND e.active = TRUE")).
		WithArgs(`[{"student_id":"s1"}]`).
		WillReturnRows(rows)

	result, err := repo.ListForStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	seats, err := result[0].Seats()
	require.NoError(t, err)
	assert.Equal(t, "A1", seats[0].SeatNumber)
	assert.Equal(t, "Main Hall", result[0].HallName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
