package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"readinghub/backend/internal/catalog"
	"readinghub/backend/internal/lib/sl"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// APIError is an error that carries its own HTTP status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// NewAPIError creates an APIError.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func init() {
	// Report validation failures by their JSON field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// ErrorHandler turns errors pushed with c.Error into the failure envelope.
// Handlers that already wrote a response are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.Validation(c, http.StatusBadRequest, "Validation failed", fieldErrors(validationErrs))
			return
		}

		status, message := classify(err)
		if status >= http.StatusInternalServerError {
			slog.Default().Error("request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				sl.Err(err),
			)
		}
		response.Error(c, status, message)
	}
}

func classify(err error) (int, string) {
	var apiErr *APIError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Message
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest, "Invalid request body"
	case errors.As(err, &typeErr):
		return http.StatusBadRequest, fmt.Sprintf("Invalid type for field %q", typeErr.Field)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return http.StatusBadRequest, "Referenced resource does not exist"
	case errors.Is(err, jwt.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Book not found in catalog"
	case errors.Is(err, catalog.ErrUpstream):
		return http.StatusBadGateway, "Book catalog is unavailable"
	}
	return http.StatusInternalServerError, "Internal server error"
}

func fieldErrors(errs validator.ValidationErrors) []response.FieldError {
	out := make([]response.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, response.FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "alphanum":
		return "must contain only letters and digits"
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

// respondError writes an expected failure.
func respondError(c *gin.Context, status int, message string) {
	response.Error(c, status, message)
}

// bindJSON binds the body into dst. On failure the error is handed to
// ErrorHandler and false is returned.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}
