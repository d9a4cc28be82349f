package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
)

const hallListCacheKey = "halls:active"

type hallRepository interface {
	ListActive(ctx context.Context) ([]models.Hall, error)
	FindByID(ctx context.Context, id string) (*models.Hall, error)
	FindByName(ctx context.Context, name string) (*models.Hall, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, hall *models.Hall) error
	Update(ctx context.Context, hall *models.Hall) error
	Deactivate(ctx context.Context, id string) error
	HasBookedExams(ctx context.Context, name string) (bool, error)
	HasFinalizedArrangement(ctx context.Context, hallID string) (bool, error)
}

// HallService manages the hall registry.
type HallService struct {
	repo      hallRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHallService constructs a HallService. cache may be nil.
func NewHallService(repo hallRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *HallService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HallService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns active halls ordered by name.
func (s *HallService) List(ctx context.Context) ([]models.Hall, error) {
	var halls []models.Hall
	if s.cache.Get(ctx, hallListCacheKey, &halls) {
		return halls, nil
	}
	halls, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list halls")
	}
	s.cache.Set(ctx, hallListCacheKey, halls, 0)
	return halls, nil
}

// Get returns a hall by id.
func (s *HallService) Get(ctx context.Context, id string) (*models.Hall, error) {
	hall, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}
	return hall, nil
}

// ResolveActive looks a hall up by name and requires it to be active.
func (s *HallService) ResolveActive(ctx context.Context, name string) (*models.Hall, error) {
	hall, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hall")
	}
	if !hall.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
	}
	return hall, nil
}

// Create registers a new hall.
func (s *HallService) Create(ctx context.Context, req dto.CreateHallRequest, actor models.Actor) (*models.Hall, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hall payload")
	}
	if err := s.ensureUniqueName(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	hall := &models.Hall{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Capacity:  req.Capacity,
		Location:  req.Location,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actor.ID != "" {
		createdBy := actor.ID
		hall.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, hall); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create hall")
	}
	s.cache.Invalidate(ctx, hallListCacheKey)
	return hall, nil
}

// Update applies a partial update to a hall. Exams reference halls by name, so a hall with
// booked exams keeps its name, and a hall used by a finalized arrangement keeps name and capacity.
func (s *HallService) Update(ctx context.Context, id string, req dto.UpdateHallRequest) (*models.Hall, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hall payload")
	}
	hall, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	currentName := hall.Name
	renamed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hall name is required")
		}
		if !strings.EqualFold(name, hall.Name) {
			if err := s.ensureUniqueName(ctx, name, hall.ID); err != nil {
				return nil, err
			}
		}
		renamed = name != currentName
		hall.Name = name
	}
	resized := req.Capacity != nil && *req.Capacity != hall.Capacity

	if renamed || resized {
		if err := s.ensureStructuralChangeAllowed(ctx, hall.ID, currentName, renamed); err != nil {
			return nil, err
		}
	}
	if req.Capacity != nil {
		hall.Capacity = *req.Capacity
	}
	if req.Location != nil {
		location := strings.TrimSpace(*req.Location)
		if location == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "hall location is required")
		}
		hall.Location = location
	}
	hall.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, hall); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update hall")
	}
	s.cache.Invalidate(ctx, hallListCacheKey)
	return hall, nil
}

// Delete deactivates a hall. Exams keep referencing it by name.
func (s *HallService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "hall not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete hall")
	}
	s.cache.Invalidate(ctx, hallListCacheKey)
	return nil
}

func (s *HallService) ensureStructuralChangeAllowed(ctx context.Context, id, currentName string, renamed bool) error {
	finalized, err := s.repo.HasFinalizedArrangement(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hall arrangements")
	}
	if finalized {
		return appErrors.Clone(appErrors.ErrFinalized, "hall is used by a finalized seating arrangement; only location can change")
	}
	if !renamed {
		return nil
	}
	booked, err := s.repo.HasBookedExams(ctx, currentName)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hall bookings")
	}
	if booked {
		return appErrors.Clone(appErrors.ErrConflict, "hall has scheduled exams and cannot be renamed")
	}
	return nil
}

func (s *HallService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check hall name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "hall with this name already exists")
	}
	return nil
}
