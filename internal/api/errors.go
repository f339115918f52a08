package api

import (
	"errors"
	"net/http"

	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error onto an HTTP status
func statusFor(err error) int {
	if _, ok := service.IsDraftError(err); ok {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrWalletNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrTransactionRejected):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrTransactionReverted),
		errors.Is(err, models.ErrTransactionPending),
		errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrProviderUnavailable),
		errors.Is(err, models.ErrConnectionFailed),
		errors.Is(err, models.ErrUnsupportedNetwork):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorBody renders err for a client. Internal errors are not echoed.
func errorBody(err error) gin.H {
	if de, ok := service.IsDraftError(err); ok {
		return gin.H{"error": "invalid draft", "details": de.Errors}
	}

	code := statusFor(err)
	if code == http.StatusInternalServerError {
		return gin.H{"error": "internal server error"}
	}
	return gin.H{"error": err.Error(), "kind": models.ErrorKind(err)}
}

// respondError writes the mapped status and body for err
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody(err))
}
