package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	noStore(c)
	c.JSON(status, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Message sends a success response carrying a human readable message next to the payload.
func Message(c *gin.Context, status int, message string, data interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, message string, data interface{}) {
	Message(c, http.StatusCreated, message, data)
}

// Detailer is implemented by domain errors that expose structured context to clients.
type Detailer interface {
	ErrorDetails() interface{}
}

// Error sends an error response converting the error to the common structure.
// Details of a wrapped Detailer are returned in data.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	env := Envelope{Success: false, Message: appErr.Message, Error: appErr}
	var detailer Detailer
	if errors.As(err, &detailer) {
		env.Data = detailer.ErrorDetails()
	}
	noStore(c)
	c.JSON(appErr.Status, env)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
