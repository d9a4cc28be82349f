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

type hallTicketService interface {
	Issue(ctx context.Context, req dto.IssueHallTicketRequest, issuer models.Actor) (*models.HallTicket, error)
	Decide(ctx context.Context, ticketID string, req dto.DecideHallTicketRequest, reviewer models.Actor) (*models.HallTicket, error)
	Revoke(ctx context.Context, ticketID string, actor models.Actor) error
	MyTickets(ctx context.Context, studentID string) ([]models.HallTicketDetail, error)
	MyTicket(ctx context.Context, studentID, examID string) (*models.HallTicketDetail, error)
	ListPending(ctx context.Context, query dto.HallTicketQuery) ([]models.HallTicketDetail, *models.Pagination, error)
	ListAll(ctx context.Context, query dto.HallTicketQuery) ([]models.HallTicketDetail, *models.Pagination, error)
	ListByExam(ctx context.Context, examID string) ([]models.HallTicketDetail, error)
}

// HallTicketHandler exposes issuance, review and student ticket views.
type HallTicketHandler struct {
	service hallTicketService
}

// NewHallTicketHandler builds a hall ticket handler.
func NewHallTicketHandler(service hallTicketService) *HallTicketHandler {
	return &HallTicketHandler{service: service}
}

// Issue godoc
// @Summary Issue or re-issue a hall ticket
// @Description Admin issuance is approved immediately and notifies the student; teacher issuance waits for review.
// @Tags HallTickets
// @Accept json
// @Produce json
// @Param payload body dto.IssueHallTicketRequest true "Ticket payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope "Validation error or semester mismatch"
// @Failure 403 {object} response.Envelope
// @Router /hall-tickets/issue [post]
func (h *HallTicketHandler) Issue(c *gin.Context) {
	var req dto.IssueHallTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hall ticket payload"))
		return
	}
	ticket, err := h.service.Issue(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "hall ticket issued"
	if ticket.Decision.Status == models.ApprovalPending {
		message = "hall ticket issued and awaiting approval"
	}
	response.Created(c, message, ticket)
}

// Decide godoc
// @Summary Approve or reject a hall ticket
// @Tags HallTickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param payload body dto.DecideHallTicketRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /hall-tickets/{id}/status [put]
func (h *HallTicketHandler) Decide(c *gin.Context) {
	var req dto.DecideHallTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	ticket, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "hall ticket "+string(ticket.Decision.Status), ticket)
}

// Revoke godoc
// @Summary Revoke a hall ticket
// @Tags HallTickets
// @Param id path string true "Ticket ID"
// @Success 204
// @Router /hall-tickets/{id}/revoke [patch]
func (h *HallTicketHandler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mine godoc
// @Summary List my approved hall tickets
// @Tags HallTickets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /hall-tickets/me [get]
func (h *HallTicketHandler) Mine(c *gin.Context) {
	tickets, err := h.service.MyTickets(c.Request.Context(), actorFromContext(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, nil)
}

// MineForExam godoc
// @Summary Get my hall ticket for an exam
// @Tags HallTickets
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope "Missing or not yet approved"
// @Router /hall-tickets/exam/{examId}/me [get]
func (h *HallTicketHandler) MineForExam(c *gin.Context) {
	ticket, err := h.service.MyTicket(c.Request.Context(), actorFromContext(c).ID, c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// List godoc
// @Summary List hall tickets
// @Tags HallTickets
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param examId query string false "Exam ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /hall-tickets [get]
func (h *HallTicketHandler) List(c *gin.Context) {
	h.list(c, h.service.ListAll)
}

// Pending godoc
// @Summary List hall tickets awaiting approval
// @Tags HallTickets
// @Produce json
// @Param examId query string false "Exam ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /hall-tickets/pending [get]
func (h *HallTicketHandler) Pending(c *gin.Context) {
	h.list(c, h.service.ListPending)
}

// ByExam godoc
// @Summary List active hall tickets of an exam
// @Tags HallTickets
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /hall-tickets/exam/{examId} [get]
func (h *HallTicketHandler) ByExam(c *gin.Context) {
	tickets, err := h.service.ListByExam(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, nil)
}

type ticketLister func(ctx context.Context, query dto.HallTicketQuery) ([]models.HallTicketDetail, *models.Pagination, error)

func (h *HallTicketHandler) list(c *gin.Context, fetch ticketLister) {
	var query dto.HallTicketQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hall ticket filters"))
		return
	}
	tickets, pagination, err := fetch(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, pagination)
}
