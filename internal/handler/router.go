package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/middleware"
	"github.com/noah-isme/exam-hall-api/internal/models"
)

// Handlers bundles every route group served by the API.
type Handlers struct {
	Halls         *HallHandler
	Exams         *ExamHandler
	Tickets       *HallTicketHandler
	Seating       *SeatingHandler
	Notifications *NotificationHandler
	Ops           *MetricsHandler
}

// RegisterRoutes mounts the probes on root and the authenticated API under the prefix group.
func RegisterRoutes(root *gin.Engine, api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	root.GET("/health", h.Ops.Health)
	root.GET("/ready", h.Ops.Ready)
	root.GET("/metrics", h.Ops.Prometheus)

	auth := api.Group("", middleware.JWT(tokens))
	admin := middleware.RequireRoles(models.RoleAdmin)
	seatingWriters := middleware.RequireRoles(models.RoleAdmin, models.RoleSeatingManager)

	halls := auth.Group("/halls")
	halls.GET("", h.Halls.List)
	halls.GET("/:id", h.Halls.Get)
	halls.POST("", seatingWriters, h.Halls.Create)
	halls.PUT("/:id", seatingWriters, h.Halls.Update)
	halls.DELETE("/:id", seatingWriters, h.Halls.Delete)

	exams := auth.Group("/exams")
	exams.GET("", h.Exams.List)
	exams.GET("/:id", h.Exams.Get)
	exams.POST("", admin, h.Exams.Create)
	exams.PUT("/:id", admin, h.Exams.Update)
	exams.DELETE("/:id", admin, h.Exams.Delete)

	tickets := auth.Group("/hall-tickets")
	tickets.POST("/issue", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Tickets.Issue)
	tickets.GET("/me", middleware.RequireRoles(models.RoleStudent), h.Tickets.Mine)
	tickets.GET("/exam/:examId/me", middleware.RequireRoles(models.RoleStudent), h.Tickets.MineForExam)
	tickets.GET("", admin, h.Tickets.List)
	tickets.GET("/pending", admin, h.Tickets.Pending)
	tickets.GET("/exam/:examId", admin, h.Tickets.ByExam)
	tickets.PUT("/:id/status", admin, h.Tickets.Decide)
	tickets.PATCH("/:id/revoke", admin, h.Tickets.Revoke)

	seating := auth.Group("/seating")
	seating.GET("/student", middleware.RequireRoles(models.RoleStudent), h.Seating.Student)
	seating.POST("", seatingWriters, h.Seating.Generate)
	seating.GET("", seatingWriters, h.Seating.List)
	seating.GET("/:id", seatingWriters, h.Seating.Get)
	seating.GET("/:id/export", seatingWriters, h.Seating.Export)
	seating.PATCH("/:id/finalize", seatingWriters, h.Seating.Finalize)
	seating.DELETE("/:id", seatingWriters, h.Seating.Delete)

	notifications := auth.Group("/notifications")
	notifications.GET("/me", h.Notifications.Mine)
	notifications.PATCH("/:id/read", h.Notifications.MarkRead)
}
