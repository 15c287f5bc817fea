// Package response writes the {success, data, message} JSON envelope every
// endpoint returns.
package response

import (
	"github.com/gin-gonic/gin"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool         `json:"success" example:"true"`
	Data    any          `json:"data"`
	Message string       `json:"message,omitempty" example:"Club created"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"must be a valid email address"`
}

// ErrorResponse documents the failure envelope in swagger annotations.
type ErrorResponse struct {
	Success bool         `json:"success" example:"false"`
	Message string       `json:"message" example:"An error message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// JSON writes a success envelope carrying data.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// JSONWithMessage writes a success envelope carrying data and a message.
func JSONWithMessage(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// Message writes a success envelope with only a message.
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: true, Message: message})
}

// Error writes a failure envelope.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

// Abort writes a failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// Validation writes a failure envelope listing field errors.
func Validation(c *gin.Context, status int, message string, errs []FieldError) {
	c.JSON(status, Envelope{Success: false, Message: message, Errors: errs})
}
