package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/portal-auth/services"
	"github.com/upb/portal-auth/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var writeErr error
	switch {
	case services.IsValidationError(err), services.IsConflictError(err):
		// Both carry user-facing reasons in the same shape
		reasons := services.GetReasons(err)
		if len(reasons) == 0 {
			reasons = []string{domainMessage(err)}
		}
		writeErr = utils.WriteErrorList(w, http.StatusBadRequest, reasons)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, domainMessage(err))

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, domainMessage(err))

	case services.IsUnavailableError(err):
		logger.Error("dependency unavailable",
			zap.Error(err),
			zap.Any("details", services.GetErrorDetails(err)))
		writeErr = utils.WriteServiceUnavailable(w, "The service is temporarily unavailable")

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error",
			zap.Error(err),
			zap.Any("details", services.GetErrorDetails(err)))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// domainMessage returns the client-safe message of a domain error, without the wrapped cause
func domainMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
