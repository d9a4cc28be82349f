package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

const seatingColumns = "id, exam_id, hall_id, arrangements, unseated, status, created_by, created_at, updated_at"

// SeatingRepository persists seating arrangements and writes seat labels back onto tickets.
type SeatingRepository struct {
	db *sqlx.DB
}

// NewSeatingRepository constructs a SeatingRepository.
func NewSeatingRepository(db *sqlx.DB) *SeatingRepository {
	return &SeatingRepository{db: db}
}

// CreateWithSeats inserts the arrangement and updates seat_number on each seated ticket in one transaction.
func (r *SeatingRepository) CreateWithSeats(ctx context.Context, arrangement *models.SeatingArrangement, seats []models.SeatAssignment) (err error) {
	if arrangement.ID == "" {
		arrangement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if arrangement.CreatedAt.IsZero() {
		arrangement.CreatedAt = now
	}
	arrangement.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create seating: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO seating_arrangements (id, exam_id, hall_id, arrangements, unseated, status, created_by, created_at, updated_at)
        VALUES (:id, :exam_id, :hall_id, :arrangements, :unseated, :status, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, arrangement); err != nil {
		return fmt.Errorf("insert seating arrangement: %w", err)
	}

	const assign = `UPDATE hall_tickets SET seat_number = $1, updated_at = $2 WHERE id = $3`
	for _, seat := range seats {
		if _, err = tx.ExecContext(ctx, assign, seat.SeatNumber, now, seat.TicketID); err != nil {
			return fmt.Errorf("assign seat %s: %w", seat.SeatNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create seating: %w", err)
	}
	return nil
}

// FindByID fetches an arrangement.
func (r *SeatingRepository) FindByID(ctx context.Context, id string) (*models.SeatingArrangement, error) {
	query := "SELECT " + seatingColumns + " FROM seating_arrangements WHERE id = $1"
	var arrangement models.SeatingArrangement
	if err := r.db.GetContext(ctx, &arrangement, query, id); err != nil {
		return nil, err
	}
	return &arrangement, nil
}

// List returns arrangements newest first.
func (r *SeatingRepository) List(ctx context.Context, filter models.SeatingFilter) ([]models.SeatingArrangement, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		conditions = append(conditions, fmt.Sprintf("exam_id = $%d", len(args)))
	}
	if filter.HallID != "" {
		args = append(args, filter.HallID)
		conditions = append(conditions, fmt.Sprintf("hall_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM seating_arrangements WHERE %s ORDER BY created_at DESC", seatingColumns, strings.Join(conditions, " AND "))

	var arrangements []models.SeatingArrangement
	if err := r.db.SelectContext(ctx, &arrangements, query, args...); err != nil {
		return nil, fmt.Errorf("list seating arrangements: %w", err)
	}
	return arrangements, nil
}

// HasFinalized reports whether (exam, hall) already has a finalized arrangement.
func (r *SeatingRepository) HasFinalized(ctx context.Context, examID, hallID string) (bool, error) {
	const query = `SELECT 1 FROM seating_arrangements WHERE exam_id = $1 AND hall_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, examID, hallID, models.SeatingStatusFinalized); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check finalized seating: %w", err)
	}
	return true, nil
}

// Finalize moves a Draft arrangement to Finalized. It reports false when the record was not a Draft.
func (r *SeatingRepository) Finalize(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE seating_arrangements SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.SeatingStatusFinalized, time.Now().UTC(), models.SeatingStatusDraft)
	if err != nil {
		return false, fmt.Errorf("finalize seating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete hard deletes an arrangement. Ticket seat numbers are left untouched.
func (r *SeatingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seating_arrangements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete seating: %w", err)
	}
	return expectAffected(res)
}

// ListForStudent returns arrangements containing the student, joined with exam and hall details.
func (r *SeatingRepository) ListForStudent(ctx context.Context, studentID string) ([]models.StudentSeatingRow, error) {
	probe, err := json.Marshal([]map[string]string{{"student_id": studentID}})
	if err != nil {
		return nil, fmt.Errorf("encode student probe: %w", err)
	}
	const query = `SELECT sa.id, sa.exam_id, sa.hall_id, sa.arrangements, sa.unseated, sa.status, sa.created_by, sa.created_at, sa.updated_at,
        e.title AS exam_title, e.exam_date, e.start_time, e.end_time, h.name AS hall_name
        FROM seating_arrangements sa
        JOIN exams e ON e.id = sa.exam_id
        JOIN halls h ON h.id = sa.hall_id
        WHERE sa.arrangements @> $1::jsonb AND e.active = TRUE
        ORDER BY e.exam_date ASC, e.start_time ASC, sa.created_at DESC`
	var rows []models.StudentSeatingRow
	if err := r.db.SelectContext(ctx, &rows, query, string(probe)); err != nil {
		return nil, fmt.Errorf("list student seating: %w", err)
	}
	return rows, nil
}
