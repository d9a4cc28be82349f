package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/models"
	"github.com/noah-isme/exam-hall-api/pkg/response"
)

type notificationService interface {
	ListMine(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler builds a notification handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Mine godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/me [get]
func (h *NotificationHandler) Mine(c *gin.Context) {
	items, err := h.service.ListMine(c.Request.Context(), actorFromContext(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkRead godoc
// @Summary Mark notification as read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), actorFromContext(c).ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
