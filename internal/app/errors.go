package app

import (
	"database/sql"
	"errors"
	"net/http"

	"studioflow/api/internal/auth"
	"studioflow/api/internal/authpw"
	"studioflow/api/internal/workflow"
)

// mapError turns a service error into an HTTP status, stable error code,
// and client-facing message. Conflict and finalized races are both 409,
// impossible graph moves are 422 so callers can tell them from 403 role
// denials.
func mapError(err error) (status int, code, message string) {
	var wfErr *workflow.Error
	if errors.As(err, &wfErr) {
		switch wfErr.Kind {
		case workflow.KindInvalidTransition:
			return http.StatusUnprocessableEntity, "INVALID_TRANSITION", wfErr.Message
		case workflow.KindForbidden:
			return http.StatusForbidden, "FORBIDDEN", wfErr.Message
		case workflow.KindConflict:
			return http.StatusConflict, "CONFLICT", wfErr.Message
		case workflow.KindAlreadyFinalized:
			return http.StatusConflict, "ALREADY_FINALIZED", wfErr.Message
		case workflow.KindValidation:
			return http.StatusUnprocessableEntity, "VALIDATION_ERROR", wfErr.Message
		}
	}
	switch workflow.KindOf(err) {
	case workflow.KindTimeout:
		return http.StatusGatewayTimeout, "TIMEOUT", "Operation timed out"
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found"
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"
	}
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}
