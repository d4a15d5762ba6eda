package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	surveydomain "github.com/smallbiznis/relevamientos/internal/survey/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string
	Message string
}

type errorView struct {
	Status int
	Error  errorPayload
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ErrorHandlingMiddleware renders the last handler error as an HTML page.
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
		c.HTML(status, "error.html", errorView{Status: status, Error: payload})
		c.Abort()
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "Error interno del servidor.",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "Solicitud inválida.",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Relevamiento no encontrado.",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "Demasiadas cargas seguidas. Intente nuevamente en unos segundos.",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "Servicio no disponible.",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "Error interno del servidor.",
		}
	}
}

// Invalid ids are reported as missing pages, like an unmatched route.
func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, surveydomain.ErrNotFound),
		errors.Is(err, surveydomain.ErrInvalidID),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}
