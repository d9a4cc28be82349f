package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
)

const ticketResource = "hall_tickets"

type hallTicketRepository interface {
	Upsert(ctx context.Context, ticket *models.HallTicket) error
	FindByID(ctx context.Context, id string) (*models.HallTicket, error)
	UpdateDecision(ctx context.Context, id string, decision models.Decision) error
	Revoke(ctx context.Context, id string) error
	ListVisibleForStudent(ctx context.Context, studentID string) ([]models.HallTicketDetail, error)
	FindVisibleForStudent(ctx context.Context, studentID, examID string) (*models.HallTicketDetail, error)
	List(ctx context.Context, filter models.HallTicketFilter) ([]models.HallTicketDetail, int, error)
	ListActiveByExam(ctx context.Context, examID string) ([]models.HallTicketDetail, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// HallTicketServiceParams groups constructor dependencies.
type HallTicketServiceParams struct {
	Tickets   hallTicketRepository
	Students  studentReader
	Exams     examReader
	Notifier  Notifier
	Audit     auditLogger
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// HallTicketService runs the issue, decide and revoke workflow.
type HallTicketService struct {
	tickets   hallTicketRepository
	students  studentReader
	exams     examReader
	notifier  Notifier
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHallTicketService constructs a HallTicketService.
func NewHallTicketService(params HallTicketServiceParams) *HallTicketService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &HallTicketService{
		tickets:   params.Tickets,
		students:  params.Students,
		exams:     params.Exams,
		notifier:  notifier,
		audit:     params.Audit,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Issue creates or resets the ticket for (student, exam). Admin issuance is approved at once
// and notifies the student; teacher issuance waits for a reviewer.
func (s *HallTicketService) Issue(ctx context.Context, req dto.IssueHallTicketRequest, issuer models.Actor) (*models.HallTicket, error) {
	if !issuer.Is(models.RoleAdmin, models.RoleTeacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and teachers can issue hall tickets")
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.ExamID = strings.TrimSpace(req.ExamID)
	req.Hall = strings.TrimSpace(req.Hall)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id, exam_id and hall are required")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exam, err := s.loadActiveExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if student.Semester > 0 && exam.Semester > 0 && student.Semester != exam.Semester {
		return nil, appErrors.Clone(appErrors.ErrSemesterMismatch,
			fmt.Sprintf("cannot issue ticket: student is in semester %d but exam is for semester %d", student.Semester, exam.Semester))
	}

	now := s.now().UTC()
	decision := models.PendingDecision()
	if issuer.Is(models.RoleAdmin) {
		decision = models.ApprovedDecision(issuer.ID, now)
	}
	ticket := &models.HallTicket{
		StudentID:  student.ID,
		ExamID:     exam.ID,
		Hall:       req.Hall,
		SeatNumber: req.SeatNumber,
		Status:     models.TicketStatusIssued,
		Decision:   decision,
		Notes:      req.Notes,
		IssuedBy:   issuer.ID,
		IssuedAt:   now,
		Active:     true,
	}
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue hall ticket")
	}

	s.metrics.RecordTicketIssued(decision.Status)
	recordAudit(ctx, s.audit, s.logger, issuer.ID, models.AuditActionTicketIssue, ticketResource, ticket.ID, nil, ticket)
	if decision.Approved() {
		s.notifier.Notify(ctx, ticket.StudentID,
			fmt.Sprintf("Hall Ticket issued for %s. Seat: %s, Hall: %s.", examTitle(exam), seatLabel(ticket.SeatNumber), ticket.Hall),
			models.NotificationSuccess)
	}
	return ticket, nil
}

// Decide records an admin's approval or rejection. Any non-revoked ticket may be re-decided.
func (s *HallTicketService) Decide(ctx context.Context, ticketID string, req dto.DecideHallTicketRequest, reviewer models.Actor) (*models.HallTicket, error) {
	if !reviewer.Is(models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can decide hall tickets")
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be approved or rejected")
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketStatusRevoked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "revoked hall tickets cannot be decided")
	}

	previous := ticket.Decision
	now := s.now().UTC()
	var decision models.Decision
	if models.ApprovalStatus(req.Status) == models.ApprovalApproved {
		decision = models.ApprovedDecision(reviewer.ID, now)
	} else {
		decision = models.RejectedDecision(reviewer.ID, now, strings.TrimSpace(req.RejectionReason))
	}
	if err := s.tickets.UpdateDecision(ctx, ticket.ID, decision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update hall ticket status")
	}
	ticket.Decision = decision
	ticket.UpdatedAt = now

	s.metrics.RecordTicketDecision(decision.Status)
	recordAudit(ctx, s.audit, s.logger, reviewer.ID, models.AuditActionTicketDecide, ticketResource, ticket.ID, previous, decision)
	if decision.Approved() {
		title := "your exam"
		if exam, err := s.exams.FindByID(ctx, ticket.ExamID); err == nil {
			title = examTitle(exam)
		} else {
			s.logger.Warn("failed to load exam for notification", zap.String("exam_id", ticket.ExamID), zap.Error(err))
		}
		s.notifier.Notify(ctx, ticket.StudentID,
			fmt.Sprintf("Your Hall Ticket for %s has been APPROVED. Seat: %s, Hall: %s.", title, seatLabel(ticket.SeatNumber), ticket.Hall),
			models.NotificationSuccess)
	}
	return ticket, nil
}

// Revoke withdraws a ticket from every downstream view and from seating.
func (s *HallTicketService) Revoke(ctx context.Context, ticketID string, actor models.Actor) error {
	if !actor.Is(models.RoleAdmin) {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can revoke hall tickets")
	}
	if err := s.tickets.Revoke(ctx, ticketID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "hall ticket not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke hall ticket")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionTicketRevoke, ticketResource, ticketID, nil, nil)
	return nil
}

// MyTickets lists the student's approved, active tickets.
func (s *HallTicketService) MyTickets(ctx context.Context, studentID string) ([]models.HallTicketDetail, error) {
	tickets, err := s.tickets.ListVisibleForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch hall tickets")
	}
	return tickets, nil
}

// MyTicket returns the student's ticket for one exam, hidden until approved.
func (s *HallTicketService) MyTicket(ctx context.Context, studentID, examID string) (*models.HallTicketDetail, error) {
	ticket, err := s.tickets.FindVisibleForStudent(ctx, studentID, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch hall ticket")
	}
	return ticket, nil
}

// ListPending returns tickets awaiting a reviewer.
func (s *HallTicketService) ListPending(ctx context.Context, query dto.HallTicketQuery) ([]models.HallTicketDetail, *models.Pagination, error) {
	query.Status = string(models.ApprovalPending)
	return s.ListAll(ctx, query)
}

// ListAll returns tickets filtered by approval status and exam.
func (s *HallTicketService) ListAll(ctx context.Context, query dto.HallTicketQuery) ([]models.HallTicketDetail, *models.Pagination, error) {
	filter := models.HallTicketFilter{
		ApprovalStatus: models.ApprovalStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		ExamID:         strings.TrimSpace(query.ExamID),
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	switch filter.ApprovalStatus {
	case "", models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid approval status filter")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch hall tickets")
	}
	return tickets, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListByExam returns the active tickets of one exam.
func (s *HallTicketService) ListByExam(ctx context.Context, examID string) ([]models.HallTicketDetail, error) {
	tickets, err := s.tickets.ListActiveByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch hall tickets")
	}
	return tickets, nil
}

func (s *HallTicketService) loadTicket(ctx context.Context, id string) (*models.HallTicket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall ticket not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall ticket")
	}
	if err := ticket.Decision.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored hall ticket decision is malformed")
	}
	return ticket, nil
}

func (s *HallTicketService) loadActiveExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !exam.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	return exam, nil
}

func examTitle(exam *models.Exam) string {
	if exam == nil || exam.Title == "" {
		return "your exam"
	}
	return exam.Title
}

func seatLabel(seat *string) string {
	if seat == nil || *seat == "" {
		return "TBA"
	}
	return *seat
}
