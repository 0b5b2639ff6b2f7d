package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront/internal/domain"
)

type errorResponse struct {
	Error      string             `json:"error"`
	Shortfalls []domain.Shortfall `json:"shortfalls,omitempty"`
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStockShortfall),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrDuplicateOrderNumber):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	body := errorResponse{Error: err.Error()}

	var short *domain.StockShortfallError
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.As(err, &short):
		body.Shortfalls = short.Lines
	case errors.As(err, &insufficient):
		body.Shortfalls = insufficient.Lines
	}

	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		body.Error = "temporarily unavailable, try again"
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
