package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/clock"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/export"
	"github.com/noah-isme/exam-hall-api/pkg/lock"
)

const seatingResource = "seating_arrangements"

type seatingRepository interface {
	CreateWithSeats(ctx context.Context, arrangement *models.SeatingArrangement, seats []models.SeatAssignment) error
	FindByID(ctx context.Context, id string) (*models.SeatingArrangement, error)
	List(ctx context.Context, filter models.SeatingFilter) ([]models.SeatingArrangement, error)
	HasFinalized(ctx context.Context, examID, hallID string) (bool, error)
	Finalize(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListForStudent(ctx context.Context, studentID string) ([]models.StudentSeatingRow, error)
}

type seatCandidateLister interface {
	ListSeatCandidates(ctx context.Context, examID string) ([]models.SeatCandidate, error)
}

type hallReader interface {
	FindByID(ctx context.Context, id string) (*models.Hall, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered seat chart.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// SeatingServiceParams groups constructor dependencies.
type SeatingServiceParams struct {
	Arrangements seatingRepository
	Tickets      seatCandidateLister
	Exams        examReader
	Halls        hallReader
	Locker       lock.Locker
	Audit        auditLogger
	Metrics      *MetricsService
	CSV          csvRenderer
	PDF          pdfRenderer
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// SeatingService runs the allocator and manages arrangement records.
type SeatingService struct {
	arrangements seatingRepository
	tickets      seatCandidateLister
	exams        examReader
	halls        hallReader
	locker       lock.Locker
	audit        auditLogger
	metrics      *MetricsService
	csv          csvRenderer
	pdf          pdfRenderer
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewSeatingService constructs a SeatingService.
func NewSeatingService(params SeatingServiceParams) *SeatingService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := params.Locker
	if locker == nil {
		locker = lock.Noop{}
	}
	var csv csvRenderer = export.NewCSVExporter()
	if params.CSV != nil {
		csv = params.CSV
	}
	var pdf pdfRenderer = export.NewPDFExporter()
	if params.PDF != nil {
		pdf = params.PDF
	}
	return &SeatingService{
		arrangements: params.Arrangements,
		tickets:      params.Tickets,
		exams:        params.Exams,
		halls:        params.Halls,
		locker:       locker,
		audit:        params.Audit,
		metrics:      params.Metrics,
		csv:          csv,
		pdf:          pdf,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Generate allocates seats for the issued tickets of an exam in a hall and stores a Draft arrangement.
// Tickets beyond the hall capacity stay unseated; that is reported, not failed.
func (s *SeatingService) Generate(ctx context.Context, req dto.GenerateSeatingRequest, actor models.Actor) (*dto.SeatingResult, error) {
	req.ExamID = strings.TrimSpace(req.ExamID)
	req.HallID = strings.TrimSpace(req.HallID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "exam_id and hall_id are required")
	}

	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if !exam.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	hall, err := s.halls.FindByID(ctx, req.HallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}
	if !hall.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
	}
	if hall.Capacity <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hall capacity must be greater than zero")
	}

	release, err := s.locker.Acquire(ctx, "seating:"+exam.ID+":"+hall.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "seating for this exam and hall is being generated")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release seating lease", zap.Error(err))
		}
	}()

	if !req.ForceNew {
		finalized, err := s.arrangements.HasFinalized(ctx, exam.ID, hall.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing seating")
		}
		if finalized {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "a finalized seating arrangement already exists for this exam and hall")
		}
	}

	candidates, err := s.tickets.ListSeatCandidates(ctx, exam.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issued hall tickets")
	}
	if len(candidates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoTicketsIssued, "no hall tickets issued for this exam")
	}

	allocation := AllocateSeats(candidates, hall.Capacity)
	unseated := make([]string, 0, len(allocation.Unseated))
	for _, c := range allocation.Unseated {
		unseated = append(unseated, c.StudentID)
	}
	if len(unseated) > 0 {
		s.logger.Warn("hall capacity exceeded, tickets left unseated",
			zap.String("exam_id", exam.ID),
			zap.String("hall_id", hall.ID),
			zap.Int("capacity", hall.Capacity),
			zap.Int("unseated", len(unseated)),
		)
	}

	now := s.now().UTC()
	arrangement := &models.SeatingArrangement{
		ID:        uuid.NewString(),
		ExamID:    exam.ID,
		HallID:    hall.ID,
		Status:    models.SeatingStatusDraft,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := arrangement.SetSeats(allocation.Seats, unseated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode seating arrangement")
	}
	if err := s.arrangements.CreateWithSeats(ctx, arrangement, allocation.Seats); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save seating arrangement")
	}

	s.metrics.RecordAllocation(len(allocation.Seats), len(unseated))
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSeatingGenerate, seatingResource, arrangement.ID, nil, map[string]interface{}{
		"exam_id":  exam.ID,
		"hall_id":  hall.ID,
		"seated":   len(allocation.Seats),
		"unseated": len(unseated),
	})
	return &dto.SeatingResult{Arrangement: *arrangement, TotalSeated: len(allocation.Seats), Unseated: unseated}, nil
}

// Get returns an arrangement by id.
func (s *SeatingService) Get(ctx context.Context, id string) (*models.SeatingArrangement, error) {
	arrangement, err := s.arrangements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating arrangement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating arrangement")
	}
	return arrangement, nil
}

// List returns arrangements filtered by exam, hall and status.
func (s *SeatingService) List(ctx context.Context, query dto.SeatingQuery) ([]models.SeatingArrangement, error) {
	filter := models.SeatingFilter{
		ExamID: strings.TrimSpace(query.ExamID),
		HallID: strings.TrimSpace(query.HallID),
		Status: models.SeatingStatus(strings.TrimSpace(query.Status)),
	}
	switch filter.Status {
	case "", models.SeatingStatusDraft, models.SeatingStatusFinalized:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Draft or Finalized")
	}
	items, err := s.arrangements.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating arrangements")
	}
	return items, nil
}

// Finalize marks a Draft arrangement as Finalized. Finalizing twice fails with FINALIZED.
func (s *SeatingService) Finalize(ctx context.Context, id string, actor models.Actor) (*models.SeatingArrangement, error) {
	arrangement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if arrangement.Status == models.SeatingStatusFinalized {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "seating arrangement is already finalized")
	}
	ok, err := s.arrangements.Finalize(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize seating arrangement")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "seating arrangement is already finalized")
	}
	arrangement.Status = models.SeatingStatusFinalized
	arrangement.UpdatedAt = s.now().UTC()
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSeatingFinalize, seatingResource, id,
		map[string]string{"status": string(models.SeatingStatusDraft)},
		map[string]string{"status": string(models.SeatingStatusFinalized)})
	return arrangement, nil
}

// Delete removes an arrangement. Seat numbers already written to tickets are kept.
func (s *SeatingService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.arrangements.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "seating arrangement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seating arrangement")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSeatingDelete, seatingResource, id, nil, nil)
	return nil
}

// StudentSeating lists the student's own seat in every arrangement that includes them.
func (s *SeatingService) StudentSeating(ctx context.Context, studentID string) ([]models.StudentSeat, error) {
	rows, err := s.arrangements.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch seating")
	}
	result := make([]models.StudentSeat, 0, len(rows))
	for _, row := range rows {
		seats, err := row.Seats()
		if err != nil {
			s.logger.Warn("skipping unreadable arrangement", zap.String("arrangement_id", row.ID), zap.Error(err))
			continue
		}
		for _, seat := range seats {
			if seat.StudentID != studentID {
				continue
			}
			result = append(result, models.StudentSeat{
				ArrangementID: row.ID,
				ExamID:        row.ExamID,
				ExamTitle:     row.ExamTitle,
				ExamDate:      row.ExamDate,
				StartTime:     row.StartTime,
				EndTime:       row.EndTime,
				HallID:        row.HallID,
				HallName:      row.HallName,
				Status:        row.Status,
				Seat:          seat,
			})
			break
		}
	}
	return result, nil
}

// Export renders the seat chart of an arrangement as CSV or PDF.
func (s *SeatingService) Export(ctx context.Context, id, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	arrangement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seats, err := arrangement.Seats()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode seating arrangement")
	}
	unseated, err := arrangement.UnseatedStudents()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode seating arrangement")
	}

	title := "Seating Chart"
	summary := []string{}
	if exam, err := s.exams.FindByID(ctx, arrangement.ExamID); err == nil {
		title = "Seating Chart - " + exam.Title
		summary = append(summary, fmt.Sprintf("Exam: %s (%s %s-%s)", exam.Title, exam.Date.Format(clock.DateLayout), exam.StartTime, exam.EndTime))
	} else {
		s.logger.Warn("export without exam details", zap.String("exam_id", arrangement.ExamID), zap.Error(err))
	}
	if hall, err := s.halls.FindByID(ctx, arrangement.HallID); err == nil {
		summary = append(summary, fmt.Sprintf("Hall: %s, %s (capacity %d)", hall.Name, hall.Location, hall.Capacity))
	} else {
		s.logger.Warn("export without hall details", zap.String("hall_id", arrangement.HallID), zap.Error(err))
	}
	summary = append(summary,
		fmt.Sprintf("Status: %s", arrangement.Status),
		fmt.Sprintf("Seated: %d, Unseated: %d", len(seats), len(unseated)),
	)

	data := export.Dataset{
		Headers: []string{"Seat", "Row", "Column", "Roll Number", "Name", "Class"},
		Rows:    make([]map[string]string, 0, len(seats)),
		Summary: summary,
	}
	for _, seat := range seats {
		data.Rows = append(data.Rows, map[string]string{
			"Seat":        seat.SeatNumber,
			"Row":         RowLabel(seat.Row),
			"Column":      strconv.Itoa(seat.Column),
			"Roll Number": seat.StudentRollNumber,
			"Name":        seat.StudentName,
			"Class":       seat.Class,
		})
	}

	var body []byte
	switch format {
	case export.FormatPDF:
		body, err = s.pdf.Render(data, title)
	default:
		body, err = s.csv.Render(data)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render seat chart")
	}
	return &ExportFile{
		Name:        fmt.Sprintf("seating-%s.%s", arrangement.ID, format),
		ContentType: format.ContentType(),
		Data:        body,
	}, nil
}
