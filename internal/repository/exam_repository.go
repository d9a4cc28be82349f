package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

const examColumns = "id, title, course, semester, exam_date, start_time, end_time, duration_minutes, total_marks, hall, instructions, status, active, created_by, created_at, updated_at"

// ExamRepository manages persistence for exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID fetches an exam regardless of its active flag.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := "SELECT " + examColumns + " FROM exams WHERE id = $1"
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindBooked returns active, non-completed exams in hall on date, skipping excludeID.
func (r *ExamRepository) FindBooked(ctx context.Context, hall string, date time.Time, excludeID string) ([]models.Exam, error) {
	query := "SELECT " + examColumns + " FROM exams WHERE hall = $1 AND exam_date = $2 AND active = TRUE AND status <> $3"
	args := []interface{}{hall, date, models.ExamStatusCompleted}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC"

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("find booked exams: %w", err)
	}
	return exams, nil
}

// List returns active exams matching filter along with the total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	conditions := []string{"active = TRUE"}
	args := []interface{}{}

	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Hall != "" {
		args = append(args, filter.Hall)
		conditions = append(conditions, fmt.Sprintf("hall = $%d", len(args)))
	}
	if filter.Course != "" {
		args = append(args, "%"+strings.ToLower(filter.Course)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(course) LIKE $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("exam_date = $%d", len(args)))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM exams %s ORDER BY exam_date ASC, start_time ASC LIMIT %d OFFSET %d", examColumns, where, size, offset)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exams "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, title, course, semester, exam_date, start_time, end_time, duration_minutes, total_marks, hall, instructions, status, active, created_by, created_at, updated_at)
        VALUES (:id, :title, :course, :semester, :exam_date, :start_time, :end_time, :duration_minutes, :total_marks, :hall, :instructions, :status, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET title = :title, course = :course, semester = :semester, exam_date = :exam_date, start_time = :start_time, end_time = :end_time,
        duration_minutes = :duration_minutes, total_marks = :total_marks, hall = :hall, instructions = :instructions, status = :status, updated_at = :updated_at
        WHERE id = :id AND active = TRUE`
	res, err := r.db.NamedExecContext(ctx, query, exam)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return expectAffected(res)
}

// Deactivate soft deletes an exam. Tickets and arrangements are left in place.
func (r *ExamRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE exams SET active = FALSE, updated_at = $2 WHERE id = $1 AND active = TRUE`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate exam: %w", err)
	}
	return expectAffected(res)
}
