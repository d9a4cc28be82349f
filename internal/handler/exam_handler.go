package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/response"
)

type examService interface {
	List(ctx context.Context, query dto.ExamQuery, actor models.Actor) ([]models.Exam, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, req dto.CreateExamRequest, actor models.Actor) (*models.Exam, error)
	Update(ctx context.Context, id string, req dto.UpdateExamRequest, actor models.Actor) (*models.Exam, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// ExamHandler exposes exam scheduling endpoints.
type ExamHandler struct {
	service examService
}

// NewExamHandler builds an exam handler.
func NewExamHandler(service examService) *ExamHandler {
	return &ExamHandler{service: service}
}

// List godoc
// @Summary List exams
// @Description Teachers and students with a semester only see exams of that semester.
// @Tags Exams
// @Produce json
// @Param semester query int false "Semester"
// @Param status query string false "upcoming, ongoing or completed"
// @Param hall query string false "Hall name"
// @Param course query string false "Course"
// @Param date query string false "YYYY-MM-DD"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	var query dto.ExamQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam filters"))
		return
	}
	exams, pagination, err := h.service.List(c.Request.Context(), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, pagination)
}

// Get godoc
// @Summary Get exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// Create godoc
// @Summary Schedule exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Hall already booked"
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam payload"))
		return
	}
	exam, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "exam scheduled", exam)
}

// Update godoc
// @Summary Update exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.UpdateExamRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Hall already booked"
// @Router /exams/{id} [put]
func (h *ExamHandler) Update(c *gin.Context) {
	var req dto.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam payload"))
		return
	}
	exam, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// Delete godoc
// @Summary Cancel exam
// @Tags Exams
// @Param id path string true "Exam ID"
// @Success 204
// @Router /exams/{id} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
