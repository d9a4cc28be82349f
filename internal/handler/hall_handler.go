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

type hallService interface {
	List(ctx context.Context) ([]models.Hall, error)
	Get(ctx context.Context, id string) (*models.Hall, error)
	Create(ctx context.Context, req dto.CreateHallRequest, actor models.Actor) (*models.Hall, error)
	Update(ctx context.Context, id string, req dto.UpdateHallRequest) (*models.Hall, error)
	Delete(ctx context.Context, id string) error
}

// HallHandler exposes the hall registry.
type HallHandler struct {
	service hallService
}

// NewHallHandler builds a hall handler.
func NewHallHandler(service hallService) *HallHandler {
	return &HallHandler{service: service}
}

// List godoc
// @Summary List active halls
// @Tags Halls
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /halls [get]
func (h *HallHandler) List(c *gin.Context) {
	halls, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, halls, nil)
}

// Get godoc
// @Summary Get hall
// @Tags Halls
// @Produce json
// @Param id path string true "Hall ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /halls/{id} [get]
func (h *HallHandler) Get(c *gin.Context) {
	hall, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hall, nil)
}

// Create godoc
// @Summary Register hall
// @Tags Halls
// @Accept json
// @Produce json
// @Param payload body dto.CreateHallRequest true "Hall payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /halls [post]
func (h *HallHandler) Create(c *gin.Context) {
	var req dto.CreateHallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hall payload"))
		return
	}
	hall, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "hall created", hall)
}

// Update godoc
// @Summary Update hall
// @Tags Halls
// @Accept json
// @Produce json
// @Param id path string true "Hall ID"
// @Param payload body dto.UpdateHallRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /halls/{id} [put]
func (h *HallHandler) Update(c *gin.Context) {
	var req dto.UpdateHallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hall payload"))
		return
	}
	hall, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hall, nil)
}

// Delete godoc
// @Summary Deactivate hall
// @Tags Halls
// @Param id path string true "Hall ID"
// @Success 204
// @Router /halls/{id} [delete]
func (h *HallHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
