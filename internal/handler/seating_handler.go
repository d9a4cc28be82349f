package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/dto"
	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/internal/service"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
	"github.com/noah-isme/exam-hall-api/pkg/response"
)

type seatingService interface {
	Generate(ctx context.Context, req dto.GenerateSeatingRequest, actor models.Actor) (*dto.SeatingResult, error)
	Get(ctx context.Context, id string) (*models.SeatingArrangement, error)
	List(ctx context.Context, query dto.SeatingQuery) ([]models.SeatingArrangement, error)
	Finalize(ctx context.Context, id string, actor models.Actor) (*models.SeatingArrangement, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	StudentSeating(ctx context.Context, studentID string) ([]models.StudentSeat, error)
	Export(ctx context.Context, id, format string) (*service.ExportFile, error)
}

// SeatingHandler exposes seating allocation endpoints.
type SeatingHandler struct {
	service seatingService
}

// NewSeatingHandler builds a seating handler.
func NewSeatingHandler(service seatingService) *SeatingHandler {
	return &SeatingHandler{service: service}
}

// Generate godoc
// @Summary Allocate seats for an exam in a hall
// @Description Seats issued tickets in roll-number order up to hall capacity. Overflow is reported as unseated.
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSeatingRequest true "Allocation request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Arrangement already finalized"
// @Failure 422 {object} response.Envelope "No hall tickets issued"
// @Router /seating [post]
func (h *SeatingHandler) Generate(c *gin.Context) {
	var req dto.GenerateSeatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	message := fmt.Sprintf("%d students seated", result.TotalSeated)
	if n := len(result.Unseated); n > 0 {
		message = fmt.Sprintf("%s, %d could not be seated", message, n)
	}
	response.Created(c, message, result)
}

// List godoc
// @Summary List seating arrangements
// @Tags Seating
// @Produce json
// @Param examId query string false "Exam ID"
// @Param hallId query string false "Hall ID"
// @Param status query string false "Draft or Finalized"
// @Success 200 {object} response.Envelope
// @Router /seating [get]
func (h *SeatingHandler) List(c *gin.Context) {
	var query dto.SeatingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating filters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get seating arrangement
// @Tags Seating
// @Produce json
// @Param id path string true "Arrangement ID"
// @Success 200 {object} response.Envelope
// @Router /seating/{id} [get]
func (h *SeatingHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Finalize godoc
// @Summary Finalize seating arrangement
// @Tags Seating
// @Produce json
// @Param id path string true "Arrangement ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already finalized"
// @Router /seating/{id}/finalize [patch]
func (h *SeatingHandler) Finalize(c *gin.Context) {
	item, err := h.service.Finalize(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "seating arrangement finalized", item)
}

// Delete godoc
// @Summary Delete seating arrangement
// @Tags Seating
// @Param id path string true "Arrangement ID"
// @Success 204
// @Router /seating/{id} [delete]
func (h *SeatingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Student godoc
// @Summary List my seats
// @Tags Seating
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /seating/student [get]
func (h *SeatingHandler) Student(c *gin.Context) {
	seats, err := h.service.StudentSeating(c.Request.Context(), actorFromContext(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seats, nil)
}

// Export godoc
// @Summary Download seat chart
// @Tags Seating
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Arrangement ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /seating/{id}/export [get]
func (h *SeatingHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
