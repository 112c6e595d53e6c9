package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/keyauth/internal/api"
	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/go-chi/render"
)

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, payload any) {
	render.Status(r, statusCode)
	render.JSON(w, r, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	if statusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, r, statusCode, api.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapDomainError(err)
	writeError(w, r, status, code, msg)
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid authentication credentials"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "FORBIDDEN", err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, common.ErrorInvalidOperation):
		return http.StatusBadRequest, "INVALID_OPERATION", err.Error()
	case errors.Is(err, common.ErrorExpired):
		return http.StatusBadRequest, "LICENSE_EXPIRED", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
