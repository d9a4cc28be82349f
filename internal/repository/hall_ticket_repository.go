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

const ticketColumns = "t.id, t.student_id, t.exam_id, t.hall, t.seat_number, t.status, t.approval_status, t.decided_by, t.decided_at, t.rejection_reason, t.notes, t.issued_by, t.issued_at, t.active, t.created_at, t.updated_at"

const ticketDetailColumns = ticketColumns + `, e.title AS exam_title, e.course AS exam_course, e.exam_date, e.start_time, e.end_time,
        s.full_name AS student_name, COALESCE(s.roll_number, '') AS roll_number`

const ticketDetailJoin = "FROM hall_tickets t JOIN exams e ON e.id = t.exam_id JOIN students s ON s.id = t.student_id"

// HallTicketRepository manages persistence for hall tickets.
type HallTicketRepository struct {
	db *sqlx.DB
}

// NewHallTicketRepository constructs a HallTicketRepository.
func NewHallTicketRepository(db *sqlx.DB) *HallTicketRepository {
	return &HallTicketRepository{db: db}
}

// Upsert creates the ticket for (student, exam) or resets the existing one in place.
// The stored id and created_at are written back onto ticket.
func (r *HallTicketRepository) Upsert(ctx context.Context, ticket *models.HallTicket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ticket.IssuedAt.IsZero() {
		ticket.IssuedAt = now
	}
	ticket.UpdatedAt = now

	const query = `INSERT INTO hall_tickets (id, student_id, exam_id, hall, seat_number, status, approval_status, decided_by, decided_at, rejection_reason, notes, issued_by, issued_at, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
        ON CONFLICT (student_id, exam_id) DO UPDATE SET hall = EXCLUDED.hall, seat_number = EXCLUDED.seat_number, status = EXCLUDED.status,
        approval_status = EXCLUDED.approval_status, decided_by = EXCLUDED.decided_by, decided_at = EXCLUDED.decided_at,
        rejection_reason = EXCLUDED.rejection_reason, notes = EXCLUDED.notes, issued_by = EXCLUDED.issued_by, issued_at = EXCLUDED.issued_at,
        active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query,
		ticket.ID, ticket.StudentID, ticket.ExamID, ticket.Hall, ticket.SeatNumber, ticket.Status,
		ticket.Decision.Status, ticket.Decision.By, ticket.Decision.At, ticket.Decision.Reason,
		ticket.Notes, ticket.IssuedBy, ticket.IssuedAt, ticket.Active, now,
	)
	if err := row.Scan(&ticket.ID, &ticket.CreatedAt); err != nil {
		return fmt.Errorf("upsert hall ticket: %w", err)
	}
	return nil
}

// FindByID fetches a ticket by id.
func (r *HallTicketRepository) FindByID(ctx context.Context, id string) (*models.HallTicket, error) {
	query := "SELECT " + ticketColumns + " FROM hall_tickets t WHERE t.id = $1"
	var ticket models.HallTicket
	if err := r.db.GetContext(ctx, &ticket, query, id); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateDecision stores a reviewer decision.
func (r *HallTicketRepository) UpdateDecision(ctx context.Context, id string, decision models.Decision) error {
	const query = `UPDATE hall_tickets SET approval_status = $2, decided_by = $3, decided_at = $4, rejection_reason = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, decision.Status, decision.By, decision.At, decision.Reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ticket decision: %w", err)
	}
	return expectAffected(res)
}

// Revoke marks a ticket revoked and inactive.
func (r *HallTicketRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE hall_tickets SET status = $2, active = FALSE, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, models.TicketStatusRevoked, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke ticket: %w", err)
	}
	return expectAffected(res)
}

// ListVisibleForStudent returns the student's approved, active tickets on active exams.
func (r *HallTicketRepository) ListVisibleForStudent(ctx context.Context, studentID string) ([]models.HallTicketDetail, error) {
	query := "SELECT " + ticketDetailColumns + " " + ticketDetailJoin +
		" WHERE t.student_id = $1 AND t.active = TRUE AND t.approval_status = $2 AND e.active = TRUE ORDER BY e.exam_date ASC, e.start_time ASC"
	var tickets []models.HallTicketDetail
	if err := r.db.SelectContext(ctx, &tickets, query, studentID, models.ApprovalApproved); err != nil {
		return nil, fmt.Errorf("list student tickets: %w", err)
	}
	return tickets, nil
}

// FindVisibleForStudent returns the student's approved ticket for one exam.
func (r *HallTicketRepository) FindVisibleForStudent(ctx context.Context, studentID, examID string) (*models.HallTicketDetail, error) {
	query := "SELECT " + ticketDetailColumns + " " + ticketDetailJoin +
		" WHERE t.student_id = $1 AND t.exam_id = $2 AND t.active = TRUE AND t.approval_status = $3 AND e.active = TRUE"
	var ticket models.HallTicketDetail
	if err := r.db.GetContext(ctx, &ticket, query, studentID, examID, models.ApprovalApproved); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// List returns tickets for reviewers with the total count.
func (r *HallTicketRepository) List(ctx context.Context, filter models.HallTicketFilter) ([]models.HallTicketDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.ApprovalStatus != "" {
		args = append(args, filter.ApprovalStatus)
		conditions = append(conditions, fmt.Sprintf("t.approval_status = $%d", len(args)))
	}
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		conditions = append(conditions, fmt.Sprintf("t.exam_id = $%d", len(args)))
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

	query := fmt.Sprintf("SELECT %s %s %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d", ticketDetailColumns, ticketDetailJoin, where, size, offset)
	var tickets []models.HallTicketDetail
	if err := r.db.SelectContext(ctx, &tickets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list hall tickets: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM hall_tickets t "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count hall tickets: %w", err)
	}
	return tickets, total, nil
}

// ListActiveByExam returns every active ticket for an exam regardless of decision.
func (r *HallTicketRepository) ListActiveByExam(ctx context.Context, examID string) ([]models.HallTicketDetail, error) {
	query := "SELECT " + ticketDetailColumns + " " + ticketDetailJoin + " WHERE t.exam_id = $1 AND t.active = TRUE ORDER BY roll_number ASC"
	var tickets []models.HallTicketDetail
	if err := r.db.SelectContext(ctx, &tickets, query, examID); err != nil {
		return nil, fmt.Errorf("list exam tickets: %w", err)
	}
	return tickets, nil
}

// ListSeatCandidates returns issued, active tickets for an exam resolved against the student directory.
func (r *HallTicketRepository) ListSeatCandidates(ctx context.Context, examID string) ([]models.SeatCandidate, error) {
	const query = `SELECT t.id AS ticket_id, t.student_id, s.full_name, COALESCE(s.roll_number, '') AS roll_number,
        COALESCE(s.department, '') AS department, COALESCE(s.course, '') AS course, COALESCE(s.semester, 0) AS semester
        FROM hall_tickets t JOIN students s ON s.id = t.student_id
        WHERE t.exam_id = $1 AND t.status = $2 AND t.active = TRUE
        ORDER BY t.created_at ASC, t.id ASC`
	var candidates []models.SeatCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, examID, models.TicketStatusIssued); err != nil {
		return nil, fmt.Errorf("list seat candidates: %w", err)
	}
	return candidates, nil
}
