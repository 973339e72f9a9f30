package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/recurra/pkg/errs"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrServiceUnavailable = errs.New(errs.KindUnknown, "service_unavailable")

// httpStatuser is implemented by errors that pick their own status, such as
// gateway rejections carrying the provider's code.
type httpStatuser interface {
	HTTPStatus() int
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	}

	kind := errs.KindOf(err)
	code := errs.CodeOf(err)
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest, errorPayload{
			Type:    kind.String(),
			Code:    code,
			Message: err.Error(),
			Errors: []ValidationError{
				{Field: validationErrorField(code), Code: code, Message: "invalid value"},
			},
		}
	case errs.KindNotFound:
		return http.StatusNotFound, errorPayload{Type: kind.String(), Code: code, Message: "not found"}
	case errs.KindConflict:
		return http.StatusConflict, errorPayload{Type: kind.String(), Code: code, Message: err.Error()}
	case errs.KindUnauthorized:
		return http.StatusUnauthorized, errorPayload{Type: kind.String(), Code: code, Message: "unauthorized"}
	case errs.KindRateLimited:
		return http.StatusTooManyRequests, errorPayload{Type: kind.String(), Code: code, Message: "too many requests"}
	case errs.KindNotSupported:
		return http.StatusNotImplemented, errorPayload{Type: kind.String(), Code: code, Message: err.Error()}
	case errs.KindTimeout:
		return http.StatusGatewayTimeout, errorPayload{Type: kind.String(), Code: code, Message: "payment provider timed out"}
	case errs.KindUpstream:
		status := http.StatusBadGateway
		var withStatus httpStatuser
		if errors.As(err, &withStatus) {
			status = withStatus.HTTPStatus()
		}
		return status, errorPayload{Type: kind.String(), Code: code, Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a type and code without
// leaking messages into low-cardinality fields.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		if len(vErr.Errors) > 0 {
			return "validation_error", vErr.Errors[0].Code
		}
		return "validation_error", ""
	}
	return errs.KindOf(err).String(), errs.CodeOf(err)
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
