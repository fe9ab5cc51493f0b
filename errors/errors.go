package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an error the way the workflow surfaces it to the user.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindPermission Kind = "PermissionError"
	KindNotFound   Kind = "NotFoundError"
	KindConflict   Kind = "ConflictError"
	KindUnknown    Kind = "UnknownServerError"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    statusFor(kind),
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func Permission(message string, err error) *Error { return New(KindPermission, message, err) }

func NotFound(message string, err error) *Error { return New(KindNotFound, message, err) }

func Conflict(message string, err error) *Error { return New(KindConflict, message, err) }

func Unknown(message string, err error) *Error { return New(KindUnknown, message, err) }

// FromStatus maps an upstream HTTP status to the error taxonomy.
func FromStatus(status int, message string) *Error {
	cause := fmt.Errorf("upstream status %d", status)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return New(KindValidation, message, cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return New(KindPermission, message, cause)
	case http.StatusNotFound:
		return New(KindNotFound, message, cause)
	case http.StatusConflict:
		return New(KindConflict, message, cause)
	default:
		return New(KindUnknown, message, cause)
	}
}

// KindOf returns the kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As converts any error into an *Error, wrapping foreign errors as unknown.
func As(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return New(KindUnknown, "Internal server error", err)
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// Respond writes err as the JSON body every handler returns on failure.
func Respond(c *gin.Context, err error) {
	appErr := As(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message, "kind": appErr.Kind})
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
			c.Abort()
		}
	}
}

// Common error values
var (
	ErrSessionNotFound = New(KindNotFound, "Workflow not found", nil)
	ErrUnauthorized    = New(KindPermission, "Unauthorized", nil)
)
