package dto

import "github.com/noah-isme/exam-hall-api/internal/models"

// GenerateSeatingRequest runs the allocator for an exam in a hall.
type GenerateSeatingRequest struct {
	ExamID   string `json:"exam_id" validate:"required"`
	HallID   string `json:"hall_id" validate:"required"`
	ForceNew bool   `json:"force_new"`
}

// SeatingQuery filters arrangement listings.
type SeatingQuery struct {
	ExamID string `form:"examId"`
	HallID string `form:"hallId"`
	Status string `form:"status"`
}

// SeatingResult is returned by a generation run.
type SeatingResult struct {
	Arrangement models.SeatingArrangement `json:"arrangement"`
	TotalSeated int                       `json:"total_seated"`
	Unseated    []string                  `json:"unseated"`
}
