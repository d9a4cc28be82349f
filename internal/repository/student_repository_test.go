package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studentByIDQuery = "SELECT id, COALESCE(roll_number, '') AS roll_number, full_name, COALESCE(department, '') AS department,\n        COALESCE(course, '') AS course, COALESCE(semester, 0) AS semester, active, created_at, updated_at\n        FROM students WHERE id = $1"

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "roll_number", "full_name", "department", "course", "semester", "active", "created_at", "updated_at"}).
		AddRow("s1", "R001", "Ana", "", "Physics", 3, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(studentByIDQuery)).WithArgs("s1").WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "R001", student.RollNumber)
	assert.Equal(t, 3, student.Semester)
	assert.Equal(t, "Physics", student.ClassLabel())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(studentByIDQuery)).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
