package handler

import (
	"errors"
	"net/http"

	"libtrack/internal/auth"
	"libtrack/internal/http-api/service"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP status codes in one place so the
// handlers stay free of status-code trivia. Anything unrecognized is treated
// as a backend failure: the caller can retry once the store is reachable.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, service.ErrNotLoanOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrLoanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmailInUse),
		errors.Is(err, service.ErrBookUnavailable),
		errors.Is(err, service.ErrBookOnLoan),
		errors.Is(err, service.ErrInvalidAvailability):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrStudentIDRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProfileNotFound):
		// valid session without a profile row is inconsistent state, not a
		// normal miss
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
	}
}
