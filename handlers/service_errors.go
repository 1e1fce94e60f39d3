package handlers

import (
	"net/http"

	"github.com/upb/rcfms-admin/services"
	"github.com/upb/rcfms-admin/utils"
	"go.uber.org/zap"
)

var errorCodes = map[services.ErrorType]utils.ErrorCode{
	services.ErrorTypeValidation:       utils.CodeBadRequest,
	services.ErrorTypeInvalidOperation: utils.CodeInvalidOperation,
	services.ErrorTypeUnauthorized:     utils.CodeUnauthorized,
	services.ErrorTypeForbidden:        utils.CodeForbidden,
	services.ErrorTypeNotFound:         utils.CodeNotFound,
	services.ErrorTypeRateLimit:        utils.CodeRateLimited,
	services.ErrorTypeConflict:         utils.CodeConflict,
	services.ErrorTypeInternal:         utils.CodeInternal,
}

// HandleServiceError maps domain errors to HTTP responses. Only the domain
// message reaches the client; wrapped causes stay in the logs.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	errType := services.GetErrorType(err)
	code, known := errorCodes[errType]
	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	switch {
	case !known:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(errType)))
		code = utils.CodeInternal
		message = services.GetErrorMessage(services.ErrInternal)
		details = nil

	case code == utils.CodeInternal:
		logger.Error("internal server error", zap.Error(err))
		if message == "" {
			message = services.GetErrorMessage(services.ErrInternal)
		}
		details = nil
	}

	if writeErr := utils.WriteError(w, code, message, details); writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := err.Error()
	var details map[string]interface{}
	if utils.IsValidationError(err) {
		message = "Validation failed"
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
	}

	if err := utils.WriteError(w, utils.CodeBadRequest, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
