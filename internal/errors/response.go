package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error   string `json:"error"`   // code from codes.go
	Message string `json:"message"` // human readable
}

// RespondWithError writes an ErrorResponse with the given status
func RespondWithError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

func Unauthorized(c *gin.Context, errorCode string, message string) {
	if message == "" {
		message = "A valid credential is required"
	}
	RespondWithError(c, http.StatusUnauthorized, errorCode, message)
}

func BadRequest(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusBadRequest, errorCode, message)
}

func NotFound(c *gin.Context, errorCode string, message string) {
	RespondWithError(c, http.StatusNotFound, errorCode, message)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Something went wrong. Please try again later"
	}
	RespondWithError(c, http.StatusInternalServerError, InternalServerError, message)
}

// ValidationError lists per-field problems of a rejected request body
type ValidationError struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithValidationError(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationError{
		Error:   ValidationInvalidInput,
		Message: "The request body is not valid",
		Fields:  fields,
	})
}

// SelectionError explains why a selection cannot go into the cart
type SelectionError struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Reason  string   `json:"reason"`
	Missing []string `json:"missing,omitempty"`
}

// Respond writes the response ParseError chose for err. Selection
// rejections carry their reason and missing attributes.
func Respond(c *gin.Context, err error, context string) {
	info := ParseError(err, context)
	if info.Reason != "" {
		c.JSON(info.Status, SelectionError{
			Error:   info.Code,
			Message: info.Message,
			Reason:  info.Reason,
			Missing: info.Missing,
		})
		return
	}
	RespondWithError(c, info.Status, info.Code, info.Message)
}
