package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// respondServiceError maps service errors to the failure envelope
func respondServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.RespondWithValidationErrors(w, verr.Message, middleware.FormatValidationErrors(verr))
	case errors.Is(err, service.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrNotOwner):
		middleware.RespondWithError(w, http.StatusForbidden, "Not allowed")
	case errors.Is(err, service.ErrMissingCredential),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrNotSeller):
		status, message := middleware.GateStatus(err)
		middleware.RespondWithError(w, status, message)
	default:
		logger.Error("Request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

func passthrough(next http.Handler) http.Handler { return next }
