package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

var examColumnNames = []string{"id", "title", "course", "semester", "exam_date", "start_time", "end_time", "duration_minutes", "total_marks", "hall", "instructions", "status", "active", "created_by", "created_at", "updated_at"}

func examRow(rows *sqlmock.Rows, id, hall, start, end string, date time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "Physics", "B.Sc", 3, date, start, end, 120, 100, hall, "", "upcoming", true, "admin", time.Now(), time.Now())
}

func TestExamRepositoryFindBookedExcludesSelf(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExamRepository(db)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	rows := examRow(sqlmock.NewRows(examColumnNames), "exam-a", "H1", "10:00", "12:00", date)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+examColumns+" FROM exams WHERE hall = $1 AND exam_date = $2 AND active = TRUE AND status <> $3 AND id <> $4 ORDER BY start_time ASC")).
		WithArgs("H1", date, models.ExamStatusCompleted, "exam-b").
		WillReturnRows(rows)

	exams, err := repo.FindBooked(context.Background(), "H1", date, "exam-b")
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "10:00", exams[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExamRepository(db)
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	rows := examRow(sqlmock.NewRows(examColumnNames), "exam-a", "H1", "10:00", "12:00", date)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+examColumns+" FROM exams WHERE active = TRUE AND semester = $1 AND hall = $2 ORDER BY exam_date ASC, start_time ASC LIMIT 10 OFFSET 10")).
		WithArgs(3, "H1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exams WHERE active = TRUE AND semester = $1 AND hall = $2")).
		WithArgs(3, "H1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	exams, total, err := repo.List(context.Background(), models.ExamFilter{Semester: 3, Hall: "H1", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, exams, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec("INSERT INTO exams").
		WillReturnResult(sqlmock.NewResult(1, 1))
	exam := &models.Exam{Title: "Physics", Hall: "H1", StartTime: "10:00", EndTime: "12:00", Status: models.ExamStatusUpcoming, Active: true}
	require.NoError(t, repo.Create(context.Background(), exam))
	assert.NotEmpty(t, exam.ID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET active = FALSE")).
		WithArgs(exam.ID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Deactivate(context.Background(), exam.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
