package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/middleware"
	"github.com/noah-isme/exam-hall-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext returns the authenticated principal, or the zero Actor on public routes.
func actorFromContext(c *gin.Context) models.Actor {
	return claimsFromContext(c).Actor()
}
