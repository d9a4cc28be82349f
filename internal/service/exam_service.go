package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/clock"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/lock"
)

const examResource = "exams"

type examRepository interface {
	bookedExamFinder
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Deactivate(ctx context.Context, id string) error
}

type activeHallResolver interface {
	ResolveActive(ctx context.Context, name string) (*models.Hall, error)
}

// ExamServiceParams groups constructor dependencies.
type ExamServiceParams struct {
	Repo      examRepository
	Halls     activeHallResolver
	Locker    lock.Locker
	Audit     auditLogger
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// ExamService schedules exams without double-booking halls.
type ExamService struct {
	repo      examRepository
	halls     activeHallResolver
	detector  *ConflictDetector
	locker    lock.Locker
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExamService constructs an ExamService. A nil Locker keeps the single-actor behaviour.
func NewExamService(params ExamServiceParams) *ExamService {
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
	return &ExamService{
		repo:      params.Repo,
		halls:     params.Halls,
		detector:  NewConflictDetector(params.Repo, logger),
		locker:    locker,
		audit:     params.Audit,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns an exam by id, including deactivated ones.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// List returns active exams. Teachers and students carrying a semester only see that semester.
func (s *ExamService) List(ctx context.Context, query dto.ExamQuery, actor models.Actor) ([]models.Exam, *models.Pagination, error) {
	filter := models.ExamFilter{
		Semester: query.Semester,
		Status:   models.ExamStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		Hall:     strings.TrimSpace(query.Hall),
		Course:   strings.TrimSpace(query.Course),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid exam status filter")
	}
	if query.Date != "" {
		date, err := clock.ParseDate(query.Date)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date filter")
		}
		filter.Date = &date
	}
	if actor.Is(models.RoleTeacher, models.RoleStudent) && actor.Semester > 0 {
		filter.Semester = actor.Semester
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create schedules a new exam after checking the hall slot is free.
func (s *ExamService) Create(ctx context.Context, req dto.CreateExamRequest, actor models.Actor) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	date, err := clock.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	start, end, err := clock.Span(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	hall, err := s.halls.ResolveActive(ctx, req.Hall)
	if err != nil {
		return nil, err
	}

	status := models.ExamStatus(req.Status)
	if status == "" {
		status = models.ExamStatusUpcoming
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = end - start
	}
	now := s.now().UTC()
	exam := &models.Exam{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Course:          strings.TrimSpace(req.Course),
		Semester:        req.Semester,
		Date:            date,
		StartTime:       clock.FormatMinutes(start),
		EndTime:         clock.FormatMinutes(end),
		DurationMinutes: duration,
		TotalMarks:      req.TotalMarks,
		Hall:            hall.Name,
		Instructions:    req.Instructions,
		Status:          status,
		Active:          true,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.withSlotLease(ctx, exam.Hall, exam.Date, func() error {
		if err := s.ensureSlotFree(ctx, exam, ""); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, exam); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordExamScheduled("create")
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionExamCreate, examResource, exam.ID, nil, exam)
	return exam, nil
}

// Update applies a partial update. The slot is re-checked only when hall, date or times change,
// or when a completed exam re-enters the booking space.
func (s *ExamService) Update(ctx context.Context, id string, req dto.UpdateExamRequest, actor models.Actor) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}

	updated := *existing
	slotChanged := false

	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Course != nil {
		updated.Course = strings.TrimSpace(*req.Course)
	}
	if req.Semester != nil {
		updated.Semester = *req.Semester
	}
	if req.TotalMarks != nil {
		updated.TotalMarks = *req.TotalMarks
	}
	if req.Instructions != nil {
		updated.Instructions = *req.Instructions
	}
	if req.Status != nil {
		updated.Status = models.ExamStatus(*req.Status)
	}
	if req.Hall != nil && !strings.EqualFold(strings.TrimSpace(*req.Hall), existing.Hall) {
		hall, err := s.halls.ResolveActive(ctx, *req.Hall)
		if err != nil {
			return nil, err
		}
		updated.Hall = hall.Name
		slotChanged = true
	}
	if req.Date != nil {
		date, err := clock.ParseDate(*req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		if !date.Equal(clock.Day(existing.Date)) {
			slotChanged = true
		}
		updated.Date = date
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		updated.EndTime = *req.EndTime
	}
	if req.StartTime != nil || req.EndTime != nil {
		start, end, err := clock.Span(updated.StartTime, updated.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		updated.StartTime = clock.FormatMinutes(start)
		updated.EndTime = clock.FormatMinutes(end)
		if updated.StartTime != existing.StartTime || updated.EndTime != existing.EndTime {
			slotChanged = true
		}
		if req.DurationMinutes == nil && slotChanged {
			updated.DurationMinutes = end - start
		}
	}
	if req.DurationMinutes != nil {
		updated.DurationMinutes = *req.DurationMinutes
	}
	reentersBooking := existing.Status == models.ExamStatusCompleted && updated.Status != models.ExamStatusCompleted
	needsCheck := (slotChanged || reentersBooking) && updated.Booked()
	updated.UpdatedAt = s.now().UTC()

	write := func() error {
		if needsCheck {
			if err := s.ensureSlotFree(ctx, &updated, existing.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, &updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
		}
		return nil
	}
	if needsCheck {
		err = s.withSlotLease(ctx, updated.Hall, updated.Date, write)
	} else {
		err = write()
	}
	if err != nil {
		return nil, err
	}

	if needsCheck {
		s.metrics.RecordExamScheduled("update")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionExamUpdate, examResource, updated.ID, existing, updated)
	return &updated, nil
}

// Delete soft-deletes an exam. Tickets and arrangements are retained.
func (s *ExamService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionExamDelete, examResource, id, nil, nil)
	return nil
}

func (s *ExamService) ensureSlotFree(ctx context.Context, exam *models.Exam, excludeID string) error {
	blocking, err := s.detector.HasConflict(ctx, exam.Hall, exam.Date, exam.StartTime, exam.EndTime, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hall availability")
	}
	if blocking == nil {
		return nil
	}
	s.metrics.RecordHallConflict()
	domainErr := &models.HallConflictError{Hall: exam.Hall, Date: exam.Date.Format(clock.DateLayout), Blocking: *blocking}
	s.logger.Info("hall conflict",
		zap.String("hall", domainErr.Hall),
		zap.String("date", domainErr.Date),
		zap.String("blocking_exam_id", blocking.ID),
	)
	return appErrors.Wrap(domainErr, appErrors.ErrHallConflict.Code, appErrors.ErrHallConflict.Status,
		fmt.Sprintf("hall %s is already booked on %s", domainErr.Hall, domainErr.Date))
}

func (s *ExamService) withSlotLease(ctx context.Context, hall string, date time.Time, fn func() error) error {
	key := "exam-slot:" + strings.ToLower(hall) + ":" + date.Format(clock.DateLayout)
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, context.DeadlineExceeded) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "hall schedule is being modified")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock hall schedule")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release hall schedule lease", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}
