package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/clock"
)

type bookedExamFinder interface {
	FindBooked(ctx context.Context, hall string, date time.Time, excludeID string) ([]models.Exam, error)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Touching slots do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// ConflictDetector finds booked exams that block a candidate hall slot.
type ConflictDetector struct {
	repo   bookedExamFinder
	logger *zap.Logger
}

// NewConflictDetector constructs a detector over the exam store.
func NewConflictDetector(repo bookedExamFinder, logger *zap.Logger) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{repo: repo, logger: logger}
}

// HasConflict returns the first active, not completed exam in hall on date whose slot overlaps
// start-end, ignoring excludeID. It returns nil when the slot is free.
func (d *ConflictDetector) HasConflict(ctx context.Context, hall string, date time.Time, start, end, excludeID string) (*models.Exam, error) {
	newStart, newEnd, err := clock.Span(start, end)
	if err != nil {
		return nil, err
	}
	booked, err := d.repo.FindBooked(ctx, hall, clock.Day(date), excludeID)
	if err != nil {
		return nil, fmt.Errorf("find booked exams: %w", err)
	}
	for i := range booked {
		exam := booked[i]
		if !exam.Booked() || exam.ID == excludeID {
			continue
		}
		eStart, eEnd, err := clock.Span(exam.StartTime, exam.EndTime)
		if err != nil {
			d.logger.Warn("skipping exam with unreadable slot",
				zap.String("exam_id", exam.ID),
				zap.String("start_time", exam.StartTime),
				zap.String("end_time", exam.EndTime),
			)
			continue
		}
		if Overlaps(newStart, newEnd, eStart, eEnd) {
			return &exam, nil
		}
	}
	return nil, nil
}
