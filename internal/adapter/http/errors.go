package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

const (
	msgUnavailable = "Service temporarily unavailable, try again later."
	msgInternal    = "An unexpected error occurred."
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// ErrorHandler maps domain errors onto HTTP statuses and writes an ErrorResponse
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, message := classify(err)

	log := logger.FromContext(c.UserContext())
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", c.Path()).Int("status", status).Msg("request rejected")
	}

	return c.Status(status).JSON(ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     statusText(status),
		Message:   message,
		Path:      c.Path(),
	})
}

func classify(err error) (int, string) {
	var vErr *domain.ValidationError
	var nfErr *domain.NotFoundError
	var fErr *fiber.Error

	switch {
	case errors.As(err, &vErr):
		return fiber.StatusBadRequest, vErr.Reason
	case errors.As(err, &nfErr):
		return fiber.StatusNotFound, nfErr.Error()
	case errors.Is(err, domain.ErrAccountNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrValueRejected):
		return fiber.StatusBadRequest, "A value is out of the accepted range."
	case errors.Is(err, domain.ErrAccountExists):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrChannelUnavailable), errors.Is(err, domain.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, msgUnavailable
	case errors.As(err, &fErr):
		return fErr.Code, fErr.Message
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

func statusText(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Unknown"
}
