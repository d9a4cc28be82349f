package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

const hallColumns = "id, name, capacity, location, active, created_by, created_at, updated_at"

// HallRepository manages persistence for exam halls.
type HallRepository struct {
	db *sqlx.DB
}

// NewHallRepository constructs a HallRepository.
func NewHallRepository(db *sqlx.DB) *HallRepository {
	return &HallRepository{db: db}
}

// ListActive returns active halls ordered by name.
func (r *HallRepository) ListActive(ctx context.Context) ([]models.Hall, error) {
	query := "SELECT " + hallColumns + " FROM halls WHERE active = TRUE ORDER BY name ASC"
	var halls []models.Hall
	if err := r.db.SelectContext(ctx, &halls, query); err != nil {
		return nil, fmt.Errorf("list halls: %w", err)
	}
	return halls, nil
}

// FindByID fetches a hall by id regardless of its active flag.
func (r *HallRepository) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	query := "SELECT " + hallColumns + " FROM halls WHERE id = $1"
	var hall models.Hall
	if err := r.db.GetContext(ctx, &hall, query, id); err != nil {
		return nil, err
	}
	return &hall, nil
}

// FindByName fetches a hall by its unique name, ignoring case.
func (r *HallRepository) FindByName(ctx context.Context, name string) (*models.Hall, error) {
	query := "SELECT " + hallColumns + " FROM halls WHERE LOWER(name) = LOWER($1)"
	var hall models.Hall
	if err := r.db.GetContext(ctx, &hall, query, name); err != nil {
		return nil, err
	}
	return &hall, nil
}

// ExistsByName checks name uniqueness across all halls, optionally excluding one id.
func (r *HallRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM halls WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	exists, err := r.exists(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("check hall name: %w", err)
	}
	return exists, nil
}

// HasBookedExams reports whether active, non-completed exams are booked under the hall name.
func (r *HallRepository) HasBookedExams(ctx context.Context, name string) (bool, error) {
	exists, err := r.exists(ctx, "SELECT 1 FROM exams WHERE hall = $1 AND active = TRUE AND status <> $2", name, models.ExamStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("check hall bookings: %w", err)
	}
	return exists, nil
}

// HasFinalizedArrangement reports whether a finalized seating arrangement uses the hall.
func (r *HallRepository) HasFinalizedArrangement(ctx context.Context, hallID string) (bool, error) {
	exists, err := r.exists(ctx, "SELECT 1 FROM seating_arrangements WHERE hall_id = $1 AND status = $2", hallID, models.SeatingStatusFinalized)
	if err != nil {
		return false, fmt.Errorf("check finalized arrangements: %w", err)
	}
	return exists, nil
}

func (r *HallRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var found int
	if err := r.db.GetContext(ctx, &found, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create inserts a new hall.
func (r *HallRepository) Create(ctx context.Context, hall *models.Hall) error {
	if hall.ID == "" {
		hall.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if hall.CreatedAt.IsZero() {
		hall.CreatedAt = now
	}
	hall.UpdatedAt = now
	const query = `INSERT INTO halls (id, name, capacity, location, active, created_by, created_at, updated_at)
        VALUES (:id, :name, :capacity, :location, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hall); err != nil {
		return fmt.Errorf("create hall: %w", err)
	}
	return nil
}

// Update overwrites hall metadata.
func (r *HallRepository) Update(ctx context.Context, hall *models.Hall) error {
	hall.UpdatedAt = time.Now().UTC()
	const query = `UPDATE halls SET name = :name, capacity = :capacity, location = :location, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, hall)
	if err != nil {
		return fmt.Errorf("update hall: %w", err)
	}
	return expectAffected(res)
}

// Deactivate soft deletes a hall.
func (r *HallRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE halls SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate hall: %w", err)
	}
	return expectAffected(res)
}

// expectAffected maps a write that touched no rows to sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
