package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/middleware"
	"rentals/internal/app/policies"
	"rentals/internal/app/uow"
	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
	domainreviews "rentals/internal/domain/reviews"
	"rentals/internal/infra/validation"
)

// statusFor maps domain errors onto HTTP statuses. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidRequest),
		errors.Is(err, domainbooking.ErrInvalidDateRange),
		errors.Is(err, domainbooking.ErrInvalidGuests),
		errors.Is(err, domainbooking.ErrInvalidRefund),
		errors.Is(err, domainreviews.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, domainbooking.ErrNotFound),
		errors.Is(err, domainlistings.ErrNotFound),
		errors.Is(err, domainreviews.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrUnauthorized),
		errors.Is(err, domainreviews.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrConflict),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domainlistings.ErrConcurrentWrite),
		errors.Is(err, domainreviews.ErrAlreadyExists),
		errors.Is(err, middleware.ErrKeyReused):
		return http.StatusConflict
	case errors.Is(err, domainbooking.ErrPaymentGateway):
		return http.StatusBadGateway
	case errors.Is(err, policies.ErrLockTimeout),
		errors.Is(err, uow.ErrUnitOfWorkMissing):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func handleError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed", "route", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
